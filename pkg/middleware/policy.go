package middleware

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PolicyFile is the YAML form of a gate policy:
//
//	public:
//	  - /login
//	  - /api/auth/login
//	protected:
//	  - /api/me
//	unclassified: deny
type PolicyFile struct {
	Public       []string `yaml:"public"`
	Protected    []string `yaml:"protected"`
	Unclassified string   `yaml:"unclassified"`
}

// LoadPolicyFile reads a YAML policy and applies it over base.
// Lists present in the file replace the base lists; absent ones are kept.
func LoadPolicyFile(path string, base Policy) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("failed to read gate policy file: %w", err)
	}
	return ParsePolicy(data, base)
}

// ParsePolicy applies a YAML policy document over base
func ParsePolicy(data []byte, base Policy) (Policy, error) {
	var file PolicyFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return Policy{}, fmt.Errorf("failed to parse gate policy: %w", err)
	}

	policy := Policy{
		Public:       append([]string(nil), base.Public...),
		Protected:    append([]string(nil), base.Protected...),
		Unclassified: base.Unclassified,
		LoginPath:    base.LoginPath,
	}
	if file.Public != nil {
		policy.Public = file.Public
	}
	if file.Protected != nil {
		policy.Protected = file.Protected
	}
	if u := strings.ToLower(strings.TrimSpace(file.Unclassified)); u != "" {
		policy.Unclassified = u
	}

	if err := policy.Validate(); err != nil {
		return Policy{}, fmt.Errorf("invalid gate policy: %w", err)
	}
	return policy, nil
}
