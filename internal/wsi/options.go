// Package wsi runs external topic-model samplers over a corpus and
// parses their output into topic-model records. Two backends are
// supported, HCA and HDP, behind a common Runner contract.
package wsi

import (
	"bufio"
	"os"
	"strings"

	"github.com/awbennett/LexSemTm/internal/domain"
)

// Options configures one sampler invocation. Flags holds backend
// command-line options by name; an empty string value means the flag is
// passed bare, without an argument. A zero value in any field defers to
// the merged-in defaults.
type Options struct {
	InputPath    string
	OutputDir    string
	OutputPrefix string
	ExePath      string
	Flags        map[string]string
}

// HCADefaults returns the stock options for the HCA sampler.
func HCADefaults() Options {
	return Options{
		ExePath: "topicmodelling/HCA-0.61/hca/hca",
		Flags: map[string]string{
			"C":             "300",
			"K":             "10",
			"N200000,20000": "",
		},
	}
}

// HDPDefaults returns the stock options for the HDP sampler.
func HDPDefaults() Options {
	return Options{
		ExePath: "topicmodelling/hdp/hdp",
		Flags: map[string]string{
			"algorithm": "train",
			"max_iter":  "300",
			"save_lag":  "-1",
			"gamma_b":   "0.1",
			"alpha_b":   "1.0",
		},
	}
}

// withDefaults fills unset fields of o from d. Caller-supplied flags
// always win over default flags, including bare (empty-value) ones.
func (o Options) withDefaults(d Options) Options {
	if o.InputPath == "" {
		o.InputPath = d.InputPath
	}
	if o.OutputDir == "" {
		o.OutputDir = d.OutputDir
	}
	if o.OutputPrefix == "" {
		o.OutputPrefix = d.OutputPrefix
	}
	if o.ExePath == "" {
		o.ExePath = d.ExePath
	}
	merged := make(map[string]string, len(o.Flags)+len(d.Flags))
	for name, val := range o.Flags {
		merged[name] = val
	}
	for name, val := range d.Flags {
		if _, ok := merged[name]; !ok {
			merged[name] = val
		}
	}
	o.Flags = merged
	return o
}

// LoadFlags reads a sampler flags file: one flag per line, the name
// optionally followed by a value, blank lines and '#' comments skipped.
func LoadFlags(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.Fatalf("open wsi flags file: %v", err)
	}
	defer f.Close()

	flags := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name, val, _ := strings.Cut(line, " ")
		flags[name] = strings.TrimSpace(val)
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.Fatalf("read wsi flags file: %v", err)
	}
	return flags, nil
}
