package decode_test

import (
	"testing"

	"github.com/JaimeStill/agent-chat/pkg/decode"
)

type row struct {
	Item     string  `json:"item"`
	Quantity float64 `json:"quantity"`
}

func TestFromMap(t *testing.T) {
	got, err := decode.FromMap[row](map[string]any{"item": "rebar", "quantity": 12})
	if err != nil {
		t.Fatalf("FromMap() error = %v", err)
	}
	if got.Item != "rebar" || got.Quantity != 12 {
		t.Errorf("FromMap() = %+v", got)
	}

	if _, err := decode.FromMap[row](map[string]any{"quantity": "twelve"}); err == nil {
		t.Error("FromMap() accepted mismatched type")
	}
}

func TestToMap(t *testing.T) {
	m, err := decode.ToMap(row{Item: "cement", Quantity: 3})
	if err != nil {
		t.Fatalf("ToMap() error = %v", err)
	}
	if m["item"] != "cement" || m["quantity"] != float64(3) {
		t.Errorf("ToMap() = %v", m)
	}
}
