package generator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrGeneration 表示某个引擎不可用、未配置或返回空内容。
var ErrGeneration = errors.New("generation failed")

// Engine selects the content generation backend.
type Engine string

const (
	EngineAuto     Engine = "auto"
	EngineProvider Engine = "provider"
	EngineOllama   Engine = "ollama"
	EngineHF       Engine = "hf"
	EngineFallback Engine = "fallback"
)

// autoOrder is the priority order tried by EngineAuto before the static fallback.
var autoOrder = []Engine{EngineProvider, EngineOllama, EngineHF}

// Engines lists every accepted engine name, for flag help.
func Engines() []Engine {
	return []Engine{EngineAuto, EngineProvider, EngineOllama, EngineHF, EngineFallback}
}

func ParseEngine(s string) (Engine, error) {
	e := Engine(strings.ToLower(strings.TrimSpace(s)))
	if e == "" {
		return EngineAuto, nil
	}
	for _, known := range Engines() {
		if e == known {
			return e, nil
		}
	}
	names := make([]string, 0, len(Engines()))
	for _, known := range Engines() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("engine must be one of: %s", strings.Join(names, ", "))
}
