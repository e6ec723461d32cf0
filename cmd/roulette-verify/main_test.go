package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

var regressionArgs = []string{
	"-server", "097d89ba33cd428e2a1b0a7e27c7d4e51b8ff5ab9a2f4b2c6b5c4c0e0d4f1f3b",
	"-client", "xSF4HYcEOm",
	"-nonce", "3",
}

func TestRunText(t *testing.T) {
	var out bytes.Buffer
	if err := run(regressionArgs, &out); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Roulette Result: 3",
		"Color: red",
		"Parity: odd",
		"Outcome: win (x2)",
		"Float: 0.10411793529056013",
	} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunJSON(t *testing.T) {
	var out bytes.Buffer
	if err := run(append(regressionArgs, "-json"), &out); err != nil {
		t.Fatal(err)
	}
	var res result
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatal(err)
	}
	if res.Pocket != 3 || res.Outcome != "win" || res.Payout != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestRunRequiresSeeds(t *testing.T) {
	if err := run([]string{"-nonce", "1"}, &bytes.Buffer{}); err == nil {
		t.Error("expected error without seeds")
	}
}
