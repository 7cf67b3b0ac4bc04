package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lpbetl/internal/bootstrap/logging"
	"lpbetl/internal/domain/quality"
	"lpbetl/internal/errs"
)

// TransformConfig is the explicit configuration value handed to the
// transformer. No implicit file-system side effects: when the mapping file
// is absent the built-in defaults are returned and a loud warning is logged,
// but nothing is ever written to disk.
type TransformConfig struct {
	CodeMapping   []quality.MappingRule
	TargetColumns []string
}

func DefaultTransformConfig() TransformConfig {
	rules := make([]quality.MappingRule, len(quality.DefaultCodeMapping))
	copy(rules, quality.DefaultCodeMapping)
	columns := make([]string, len(quality.TargetColumns))
	copy(columns, quality.TargetColumns)
	return TransformConfig{CodeMapping: rules, TargetColumns: columns}
}

// mapping file shape:
//
//	transformation:
//	  code_mapping:
//	    "manque cable wire": "manque câble"
//	  target_columns: [part_number, ...]
//
// code_mapping is decoded through yaml nodes because replacement order is a
// contract: rules apply in declaration order, and a plain map would lose it.
func LoadTransformConfig(ctx context.Context, path string) (TransformConfig, error) {
	if ctx == nil {
		return TransformConfig{}, errors.New("context is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.config"))

	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		logging.Warn(logCtx, "no transform mapping file configured, using built-in defaults")
		return DefaultTransformConfig(), nil
	}

	raw, err := os.ReadFile(trimmed)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Warn(
				logCtx,
				"transform mapping file not found, using built-in defaults",
				slog.String("path", trimmed),
			)
			return DefaultTransformConfig(), nil
		}
		return TransformConfig{}, errs.Wrapf(err, "read transform mapping file %q", trimmed)
	}

	cfg, err := parseTransformConfig(raw)
	if err != nil {
		return TransformConfig{}, errs.Wrapf(err, "parse transform mapping file %q", trimmed)
	}

	logging.Info(
		logCtx,
		"transform mapping loaded",
		slog.String("path", trimmed),
		slog.Int("rules", len(cfg.CodeMapping)),
		slog.Int("target_columns", len(cfg.TargetColumns)),
	)
	return cfg, nil
}

type transformFile struct {
	Transformation struct {
		CodeMapping   yaml.Node `yaml:"code_mapping"`
		TargetColumns []string  `yaml:"target_columns"`
	} `yaml:"transformation"`
}

func parseTransformConfig(raw []byte) (TransformConfig, error) {
	var file transformFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return TransformConfig{}, errs.Wrap(err, "unmarshal yaml")
	}

	rules, err := mappingRulesFromNode(file.Transformation.CodeMapping)
	if err != nil {
		return TransformConfig{}, err
	}

	cfg := TransformConfig{
		CodeMapping:   rules,
		TargetColumns: file.Transformation.TargetColumns,
	}
	if len(cfg.CodeMapping) == 0 {
		cfg.CodeMapping = DefaultTransformConfig().CodeMapping
	}
	if len(cfg.TargetColumns) == 0 {
		cfg.TargetColumns = DefaultTransformConfig().TargetColumns
	}
	return cfg, nil
}

func mappingRulesFromNode(node yaml.Node) ([]quality.MappingRule, error) {
	if node.Kind == 0 || node.IsZero() {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("code_mapping must be a yaml mapping")
	}

	// Mapping node content alternates key, value; iterating it preserves
	// declaration order.
	rules := make([]quality.MappingRule, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		value := node.Content[i+1]
		if key.Kind != yaml.ScalarNode || value.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("code_mapping entry %d is not a scalar pair", i/2)
		}
		if strings.TrimSpace(key.Value) == "" {
			return nil, fmt.Errorf("code_mapping entry %d has an empty phrase", i/2)
		}
		rules = append(rules, quality.MappingRule{From: key.Value, To: value.Value})
	}
	return rules, nil
}
