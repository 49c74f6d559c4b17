package idle

import (
	"errors"
	"testing"
)

func TestMockTracker(t *testing.T) {
	mock := NewMockTracker()
	if mock == nil {
		t.Fatal("expected non-nil mock")
	}

	if err := mock.Open("ABCD123456", "post_shop_storage"); err != nil {
		t.Fatalf("unexpected open error: %v", err)
	}
	if err := mock.Close("ABCD123456"); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}

	opened := mock.Opened()
	if len(opened) != 1 || opened[0].AssetID != "ABCD123456" || opened[0].ReasonTag != "post_shop_storage" {
		t.Fatalf("unexpected opened calls: %+v", opened)
	}
	closed := mock.Closed()
	if len(closed) != 1 || closed[0] != "ABCD123456" {
		t.Fatalf("unexpected closed calls: %+v", closed)
	}

	mock.OpenErr = errors.New("tracker down")
	if err := mock.Open("ABCD123456", "post_shop_storage"); err == nil {
		t.Fatal("expected open error")
	}
	if len(mock.Opened()) != 1 {
		t.Fatal("failed open must not be recorded")
	}
}
