// SPDX-License-Identifier: AGPL-3.0-or-later

package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/bartekus/skillkit/internal/marker"
	"github.com/bartekus/skillkit/internal/projection"
	"github.com/bartekus/skillkit/internal/runner"
	"github.com/bartekus/skillkit/internal/skillerr"
	"github.com/bartekus/skillkit/internal/tier"
)

// Injection is returned when context-injector writes to --out.
type Injection struct {
	Out        string        `json:"out"`
	Bytes      int           `json:"bytes"`
	SourceTier tier.Tier     `json:"sourceTier"`
	OutputTier tier.Tier     `json:"outputTier"`
	Markers    marker.Result `json:"markers"`
}

func injectContext(_ context.Context, inv *runner.Invocation) (any, error) {
	if inv.Guard == nil {
		return nil, errors.New("context-injector requires a knowledge root")
	}
	knowledgePath := inv.Args.String("knowledge")
	outTier, err := tier.ParseTier(inv.Args.String("output-tier"))
	if err != nil {
		return nil, skillerr.New(skillerr.ValidationError, err.Error())
	}

	v := inv.Guard.ValidateInjection(knowledgePath, outTier)
	if !v.Allowed {
		return nil, v.Err()
	}

	rawData, err := readFile(inv.Args.String("data"))
	if err != nil {
		return nil, err
	}
	var doc map[string]any
	if err := json.Unmarshal(rawData, &doc); err != nil {
		return nil, fmt.Errorf("decoding --data: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	knowledge, err := readFile(knowledgePath)
	if err != nil {
		return nil, err
	}

	ctxBlock, _ := doc["_context"].(map[string]any)
	if ctxBlock == nil {
		ctxBlock = map[string]any{}
	}
	ctxBlock["injected_knowledge"] = string(knowledge)
	doc["_context"] = ctxBlock

	rendered, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	scan := inv.Markers.Scan(string(rendered))
	if scan.HasMarkers {
		inv.Logger.Info("injected output carries markers",
			zap.String("output_tier", outTier.String()),
			zap.Strings("markers", scan.Markers))
	}

	out := inv.Args.String("out")
	if out == "" {
		return doc, nil
	}
	if err := projection.AtomicWrite(out, rendered); err != nil {
		return nil, err
	}
	return Injection{
		Out:        out,
		Bytes:      len(rendered),
		SourceTier: v.SourceTier,
		OutputTier: outTier,
		Markers:    scan,
	}, nil
}

// readFile reads path, reporting directories as an invalid file path.
func readFile(path string) ([]byte, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, skillerr.New(skillerr.InvalidFilePath, path+" is a directory",
			skillerr.WithContext(map[string]any{"path": path}))
	}
	return os.ReadFile(path)
}
