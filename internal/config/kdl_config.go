package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"

	lwierrors "github.com/standardbeagle/lwi/internal/errors"
)

// ConfigFileName is looked up in the workspace root.
const ConfigFileName = ".lwi.kdl"

// Load reads the .lwi.kdl file under dir, if present, layered over the
// defaults. A missing file is not an error.
//
// Expected shape:
//
//	workspace {
//	    root "."
//	    solution "App.sln"
//	}
//	watch {
//	    debounce_ms 1000
//	    retry_backoff_ms 50
//	    max_file_size 10485760
//	}
//	exclude "bin/**" "obj/**"
func Load(dir string) (*Config, error) {
	cfg := Default()

	path := filepath.Join(dir, ConfigFileName)
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.Workspace.Root = dir
		return cfg, nil
	}
	if err != nil {
		return nil, lwierrors.NewConfigError("file", path, err)
	}

	if err := parseKDL(cfg, string(content)); err != nil {
		return nil, err
	}

	// Paths in the file resolve relative to the file's directory.
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = dir
	} else if !filepath.IsAbs(cfg.Workspace.Root) {
		cfg.Workspace.Root = filepath.Clean(filepath.Join(dir, cfg.Workspace.Root))
	}
	if cfg.Workspace.Solution != "" && !filepath.IsAbs(cfg.Workspace.Solution) {
		cfg.Workspace.Solution = filepath.Clean(filepath.Join(dir, cfg.Workspace.Solution))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseKDL(cfg *Config, content string) error {
	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return lwierrors.NewConfigError("syntax", ConfigFileName, err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "workspace":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Workspace.Root = v })
				assignSimpleString(cn, "solution", func(v string) { cfg.Workspace.Solution = v })
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "debounce_ms":
					v, ok, err := firstIntArg(cn)
					if err != nil {
						return lwierrors.NewConfigError("debounce_ms", fmt.Sprint(cn.Arguments[0].Value), err)
					}
					if ok {
						cfg.Watch.DebounceMs = v
					}
				case "retry_backoff_ms":
					v, ok, err := firstIntArg(cn)
					if err != nil {
						return lwierrors.NewConfigError("retry_backoff_ms", fmt.Sprint(cn.Arguments[0].Value), err)
					}
					if ok {
						cfg.Watch.RetryBackoffMs = v
					}
				case "max_file_size":
					v, ok, err := firstIntArg(cn)
					if err != nil {
						return lwierrors.NewConfigError("max_file_size", fmt.Sprint(cn.Arguments[0].Value), err)
					}
					if ok {
						cfg.Watch.MaxFileSize = int64(v)
					}
				}
			}
		case "exclude":
			if patterns := collectStringArgs(n); len(patterns) > 0 {
				cfg.Exclude = patterns
			}
		}
	}
	return nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool, error) {
	if len(n.Arguments) == 0 {
		return 0, false, nil
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true, nil
	case float64:
		if v != math.Trunc(v) {
			return 0, false, fmt.Errorf("expected an integer, got %v", v)
		}
		return int(v), true, nil
	default:
		return 0, false, nil
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

// collectStringArgs accepts both inline arguments and block children.
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}
