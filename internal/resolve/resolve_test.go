package resolve_test

import (
	"testing"

	"rpc-gateway/internal/resolve"
)

func TestHeaderValueShapes(t *testing.T) {
	var undefined resolve.HeaderValue
	if undefined.Defined() {
		t.Fatalf("zero value should be undefined")
	}

	single := resolve.Single("a")
	if !single.Defined() || single.IsMulti() || len(single.Values()) != 1 {
		t.Fatalf("single = %+v", single)
	}

	src := []string{"a=1", "b=2"}
	multi := resolve.Multi(src...)
	src[0] = "changed"
	if !multi.IsMulti() || multi.Values()[0] != "a=1" {
		t.Fatalf("multi should own its values: %v", multi.Values())
	}

	if empty := resolve.Multi(); !empty.Defined() || len(empty.Values()) != 0 {
		t.Fatalf("empty multi = %+v", empty)
	}
}

func TestPartsStopsWhenConsumerStops(t *testing.T) {
	seq := resolve.Parts(resolve.Head{Status: 200}, resolve.Chunk{Index: 0}, resolve.Chunk{Index: 1})

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Fatalf("consumed %d parts", n)
	}
}
