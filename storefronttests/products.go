package storefronttests

import (
	_ "embed"
	"encoding/json"
)

type Product struct {
	Path        string `json:"path"`
	Name        string `json:"name"`
	Size        string `json:"size"`
	Price       string `json:"price"`
	PriceForTwo string `json:"priceForTwo"`
}

type productCatalog struct {
	TrainingShorts Product `json:"trainingShorts"`
}

//go:embed testdata/products.json
var productData []byte

var products = mustLoadProducts(productData)

func mustLoadProducts(data []byte) productCatalog {
	var c productCatalog
	if err := json.Unmarshal(data, &c); err != nil {
		panic(err)
	}
	return c
}
