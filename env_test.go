// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package flux_test

import (
	"testing"

	"code.hybscloud.com/flux"
)

func TestEnv(t *testing.T) {
	live := flux.LiveEnv()
	if live.IDs.Deterministic() || live.Clock == nil || live.Logger == nil {
		t.Fatalf("live env: got %+v", live)
	}
	test := flux.TestEnv()
	if !test.IDs.Deterministic() {
		t.Fatal("test env issues live IDs")
	}

	ids := flux.NewIncrementingIDGenerator()
	ids.Next()
	env := test.With(flux.Env{IDs: ids})
	if env.IDs != ids || env.Clock != test.Clock || env.Logger != test.Logger {
		t.Fatal("With replaced fields it was not given")
	}
	if got := env.IDs.Next(); got != flux.IntID(1) {
		t.Fatalf("got %v, want %v", got, flux.IntID(1))
	}
}
