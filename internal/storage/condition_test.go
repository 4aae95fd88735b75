package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileConditionsRejectsLikeAtCompileTime(t *testing.T) {
	s := sampleSchema()
	_, err := CompileConditions(s, []ConditionTerm{{Column: "name", Op: OpLike, Value: TextLiteral("a%")}})
	require.Error(t, err)
	var ue *UnsupportedError
	assert.ErrorAs(t, err, &ue)
}

func TestMatchShortCircuitAnd(t *testing.T) {
	// false AND <anything> stops at the first predicate without evaluating
	// the second.
	conds := []ConditionValue{
		{ColIndex: 2, Op: OpEQ, Value: UIntValue(99), Connective: ConnAnd},
		{ColIndex: 1, Op: OpEQ, Value: StringValue("unreachable")},
	}
	rec := Record{Values: []Value{U64Value(1), StringValue("alice"), UIntValue(30)}}
	ok, err := Match(rec, conds)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchShortCircuitOr(t *testing.T) {
	conds := []ConditionValue{
		{ColIndex: 1, Op: OpEQ, Value: StringValue("alice"), Connective: ConnOr},
		{ColIndex: 2, Op: OpEQ, Value: UIntValue(999)},
	}
	rec := Record{Values: []Value{U64Value(1), StringValue("alice"), UIntValue(30)}}
	ok, err := Match(rec, conds)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchBetweenIsStrict(t *testing.T) {
	rec := Record{Values: []Value{UIntValue(10)}}
	inclusive := []ConditionValue{{ColIndex: 0, Op: OpBetween, Value: UIntValue(10), ValueB: UIntValue(20)}}
	ok, err := Match(rec, inclusive)
	require.NoError(t, err)
	assert.False(t, ok, "BETWEEN must be strict: the lower bound itself does not match")

	middle := []ConditionValue{{ColIndex: 0, Op: OpBetween, Value: UIntValue(5), ValueB: UIntValue(20)}}
	ok, err = Match(rec, middle)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMatchNotNegatesResult(t *testing.T) {
	rec := Record{Values: []Value{UIntValue(10)}}
	conds := []ConditionValue{{Not: true, ColIndex: 0, Op: OpEQ, Value: UIntValue(10)}}
	ok, err := Match(rec, conds)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMatchEmptyProgramMatchesAll(t *testing.T) {
	ok, err := Match(Record{Values: []Value{UIntValue(1)}}, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}
