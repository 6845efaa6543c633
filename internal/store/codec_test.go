package store

import "testing"

func TestVectorCodec_RoundTrip(t *testing.T) {
	in := []float32{1, -0.5, 0.25, 3.75}
	out, err := decodeVector(encodeVector(in))
	if err != nil {
		t.Fatalf("decodeVector() error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("element %d: %v != %v", i, in[i], out[i])
		}
	}
}

func TestVectorCodec_Nil(t *testing.T) {
	if encodeVector(nil) != nil {
		t.Error("nil vector must encode to nil (stored as NULL)")
	}
	out, err := decodeVector(nil)
	if err != nil || out != nil {
		t.Errorf("decodeVector(nil) = %v, %v; want nil, nil", out, err)
	}
}

func TestVectorCodec_BadLength(t *testing.T) {
	if _, err := decodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for a blob that is not a multiple of 4 bytes")
	}
}
