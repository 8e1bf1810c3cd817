package it

import "testing"

func TestStartReturnsErrUnimplemented(t *testing.T) {
	ctx := Allocate(Config{Channel: 5, Speed: 2})

	if err := ctx.Start(); err != ErrUnimplemented {
		t.Errorf("Start() = %v, want ErrUnimplemented", err)
	}

	ctx.Stop()
}
