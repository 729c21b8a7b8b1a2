// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package base

import (
	"context"
	"testing"
)

func TestContextKey(t *testing.T) {
	k1 := NewContextKey[int]()
	k2 := NewContextKey[int]()
	ctx := k1.NewContext(context.Background(), 7)
	if got := k1.FromContext(ctx); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
	// Distinct keys of the same type do not collide.
	if got := k2.FromContext(ctx); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestJSONString(t *testing.T) {
	for _, test := range []struct {
		in   any
		want string
	}{
		{nil, "null"},
		{"s", `"s"`},
		{map[string]int{"a": 1}, `{"a":1}`},
		{make(chan int), ""},
	} {
		if got := JSONString(test.in); got != test.want {
			t.Errorf("JSONString(%v) = %q, want %q", test.in, got, test.want)
		}
	}
}
