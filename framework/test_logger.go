package framework

import "sync"

type TestLogger interface {
	TestStarted(id TestID)
	TestError(id TestID, err error)
	TestFinished(id TestID, failed bool, debugOutput CapturedOutput)
	TestSkipped(id TestID, reason string)
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(TestID)                        {}
func (n nullTestLogger) TestError(TestID, error)                   {}
func (n nullTestLogger) TestFinished(TestID, bool, CapturedOutput) {}
func (n nullTestLogger) TestSkipped(TestID, string)                {}

type synchronizedTestLogger struct {
	target TestLogger
	lock   sync.Mutex
}

// SynchronizedTestLogger serializes calls to a TestLogger that is shared by concurrent workers.
func SynchronizedTestLogger(target TestLogger) TestLogger {
	if target == nil {
		return nullTestLogger{}
	}
	return &synchronizedTestLogger{target: target}
}

func (s *synchronizedTestLogger) TestStarted(id TestID) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.target.TestStarted(id)
}

func (s *synchronizedTestLogger) TestError(id TestID, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.target.TestError(id, err)
}

func (s *synchronizedTestLogger) TestFinished(id TestID, failed bool, debugOutput CapturedOutput) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.target.TestFinished(id, failed, debugOutput)
}

func (s *synchronizedTestLogger) TestSkipped(id TestID, reason string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.target.TestSkipped(id, reason)
}
