// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jaycherian/trend-audio-matcher/internal/core/cor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// step appends its name to the input slice, or fails when err is set.
type step struct {
	cor.BaseCommand
	err  error
	runs *int
}

func newStep(name string, err error, runs *int) *step {
	return &step{BaseCommand: *cor.NewBaseCommand(name), err: err, runs: runs}
}

func (s *step) Execute(context cor.Context) {
	*s.runs++
	if s.err != nil {
		context.AddError(s.GetName(), s.err)
		return
	}
	in, _ := context.Get(s.GetInputParam()).([]string)
	context.Add(s.GetOutputParam(), append(in, s.GetName()))
}

func TestChainPipesOutputToInput(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("pipe")
	chain.AddCommand(newStep("a", nil, &runs)).AddCommand(newStep("b", nil, &runs)).AddCommand(newStep("c", nil, &runs))

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, []string{})
	chain.Execute(ctx)

	assert.False(t, ctx.HasErrors())
	assert.Equal(t, 3, runs)
	assert.Equal(t, []string{"a", "b", "c"}, ctx.Get(cor.CtxIn))
	assert.Nil(t, ctx.Get(cor.CtxOut))
	assert.Len(t, chain.Commands(), 3)
}

func TestChainStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	runs := 0
	chain := cor.NewBaseChain("fail-fast")
	chain.AddCommand(newStep("a", nil, &runs)).AddCommand(newStep("b", boom, &runs)).AddCommand(newStep("c", nil, &runs))

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, []string{})
	chain.Execute(ctx)

	assert.Equal(t, 2, runs)
	key, err, ok := ctx.FirstError()
	require.True(t, ok)
	assert.Equal(t, "b", key)
	assert.ErrorIs(t, err, boom)
}

func TestChainContinueOnFailureKeepsErrorOrder(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("continue").ContinueOnFailure(true)
	chain.AddCommand(newStep("z", errors.New("first"), &runs)).AddCommand(newStep("a", errors.New("second"), &runs))

	ctx := cor.NewBaseContextWith(context.Background())
	ctx.Add(cor.CtxIn, []string{})
	chain.Execute(ctx)

	assert.Equal(t, 1, runs)
	key, _, ok := ctx.FirstError()
	require.True(t, ok)
	assert.Equal(t, "z", key)
	assert.ErrorIs(t, ctx.GetErrors()["a"], cor.ErrNotExecutable)
}

func TestChainRecordsNotExecutable(t *testing.T) {
	runs := 0
	chain := cor.NewBaseChain("no-input")
	chain.AddCommand(newStep("a", nil, &runs))

	ctx := cor.NewBaseContextWith(context.Background())
	chain.Execute(ctx)

	assert.Equal(t, 0, runs)
	assert.ErrorIs(t, ctx.GetErrors()["a"], cor.ErrNotExecutable)
}

func TestFirstErrorEmpty(t *testing.T) {
	_, _, ok := cor.NewBaseContext().FirstError()
	assert.False(t, ok)
}
