package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h, err := NewPasswordHasher(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("NewPasswordHasher: %v", err)
	}

	hashed, err := h.Hash("hunter2")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hashed, "hunter2"); err != nil {
		t.Errorf("Compare correct password: %v", err)
	}
	if err := h.Compare(hashed, "hunter3"); err == nil {
		t.Error("Compare accepted wrong password")
	}
	if _, err := h.Hash(strings.Repeat("x", 73)); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("long password: want ErrPasswordTooLong, got %v", err)
	}
	h.CompareMissing("anything")
}
