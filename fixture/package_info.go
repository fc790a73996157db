// Package fixture composes test resources out of named, dependency-declaring producers.
//
// A Descriptor names a resource, the resources it needs, the scope it lives in, and a Producer
// that creates it. Producers have a single entry point: they acquire the resource, hand it over by
// calling use, and then release it. The call to use does not return until the scope that owns the
// resource is closed, so a producer reads top to bottom:
//
//	func(deps *fixture.Deps, use func(interface{})) error {
//		ctx, err := driver.NewContext(opts)
//		if err != nil {
//			return err
//		}
//		use(ctx)
//		return ctx.Close()
//	}
//
// Descriptors are grouped into a Set, which is validated when it is built: duplicate names,
// unknown dependencies, dependency cycles, and process-scoped resources that depend on
// case-scoped ones are all rejected before anything runs. Sets are layered with Extend.
//
// A Process holds the process-scoped instances of one worker, and a Case holds the case-scoped
// instances of one test case. Instances are created lazily, at most once per scope, and torn down
// in reverse order of acquisition when their scope is closed.
package fixture
