package feedback

import "testing"

func TestMarshalContentIDsNilBecomesEmptyArray(t *testing.T) {
	out, err := marshalContentIDs(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "[]" {
		t.Errorf("marshalContentIDs(nil) = %s, want []", out)
	}
}

func TestMarshalContentIDsPreservesOrder(t *testing.T) {
	out, err := marshalContentIDs([]int64{3, 1, 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "[3,1,2]" {
		t.Errorf("marshalContentIDs = %s, want [3,1,2]", out)
	}
}

func TestRandomSecretKeyIsNonEmptyAndUnique(t *testing.T) {
	a, err := randomSecretKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := randomSecretKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == "" || b == "" {
		t.Fatalf("randomSecretKey returned empty string")
	}
	if a == b {
		t.Errorf("randomSecretKey produced identical keys across two calls")
	}
}
