package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nervusdb/nervusdb/pkg/types"
)

func TestBinOpComparison(t *testing.T) {
	e := BinOp{Op: "<", Left: Lit{Value: types.NewInt(1)}, Right: Lit{Value: types.NewInt(2)}}
	v, err := e.Eval(Row{})
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestBinOpNullPropagation(t *testing.T) {
	e := BinOp{Op: "=", Left: Var{Name: "missing"}, Right: Lit{Value: types.NewInt(1)}}
	v, err := e.Eval(Row{})
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestBinOpOrderRejectsMismatchedKinds(t *testing.T) {
	e := BinOp{Op: "<", Left: Lit{Value: types.NewInt(1)}, Right: Lit{Value: types.NewString("x")}}
	_, err := e.Eval(Row{})
	var rt *RuntimeType
	assert.ErrorAs(t, err, &rt)
}

func TestToBooleanRejectsNonBoolean(t *testing.T) {
	_, err := ToBoolean(types.NewInt(1))
	var rt *RuntimeType
	assert.ErrorAs(t, err, &rt)
}

func TestToBooleanAllowsNull(t *testing.T) {
	v, err := ToBoolean(types.Null())
	require.NoError(t, err)
	assert.True(t, v.IsNull())
}

func TestIndexListByInteger(t *testing.T) {
	ix := Index{
		Container: Lit{Value: types.NewList([]types.Value{types.NewInt(10), types.NewInt(20)})},
		Key:       Lit{Value: types.NewInt(1)},
	}
	v, err := ix.Eval(Row{})
	require.NoError(t, err)
	assert.Equal(t, int64(20), v.Int)
}

func TestIndexListByStringIsRuntimeTypeError(t *testing.T) {
	ix := Index{
		Container: Lit{Value: types.NewList([]types.Value{types.NewInt(10)})},
		Key:       Lit{Value: types.NewString("bad")},
	}
	_, err := ix.Eval(Row{})
	var rt *RuntimeType
	assert.ErrorAs(t, err, &rt)
}

func TestArithmeticStringConcat(t *testing.T) {
	e := BinOp{Op: "+", Left: Lit{Value: types.NewString("foo")}, Right: Lit{Value: types.NewString("bar")}}
	v, err := e.Eval(Row{})
	require.NoError(t, err)
	assert.Equal(t, "foobar", v.Str)
}

func TestArithmeticDivisionByZero(t *testing.T) {
	e := BinOp{Op: "/", Left: Lit{Value: types.NewInt(1)}, Right: Lit{Value: types.NewInt(0)}}
	_, err := e.Eval(Row{})
	var rt *RuntimeType
	assert.ErrorAs(t, err, &rt)
}
