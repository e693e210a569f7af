package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvInt(t *testing.T) {
	t.Setenv("RPS_TEST_INT", " 12 ")
	assert.Equal(t, 12, envInt("RPS_TEST_INT", 3))
	t.Setenv("RPS_TEST_INT", "twelve")
	assert.Equal(t, 3, envInt("RPS_TEST_INT", 3))
	assert.Equal(t, 7, envInt("RPS_TEST_UNSET", 7))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, splitList(" https://a.example, ,https://b.example "))
	assert.Nil(t, splitList(""))
}
