package storage

import (
	"bytes"
	"errors"
	"testing"
)

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	ok, err := db.Has([]byte("missing"))
	if err != nil || ok {
		t.Fatalf("Has(missing) = %v, %v", ok, err)
	}

	key := []byte("market/order/1")
	value := []byte{0x01, 0x02, 0x03}
	if err := db.Put(key, value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Fatalf("Get = %x, want %x", got, value)
	}

	// Stored values must not alias caller slices.
	value[0] = 0xFF
	got[1] = 0xFF
	again, err := db.Get(key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(again, []byte{0x01, 0x02, 0x03}) {
		t.Fatalf("stored value mutated: %x", again)
	}

	if err := db.Put(key, []byte{0x09}); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = db.Get(key)
	if err != nil || !bytes.Equal(got, []byte{0x09}) {
		t.Fatalf("overwrite Get = %x, %v", got, err)
	}
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewLevelDB: %v", err)
	}
	defer db.Close()

	if _, err := db.Get([]byte("missing")); !errors.Is(err, ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := db.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := db.Get([]byte("k"))
	if err != nil || !bytes.Equal(got, []byte("v")) {
		t.Fatalf("Get = %q, %v", got, err)
	}
	ok, err := db.Has([]byte("k"))
	if err != nil || !ok {
		t.Fatalf("Has = %v, %v", ok, err)
	}
}
