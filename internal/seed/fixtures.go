package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixtures lists records that must exist before random data is added.
type Fixtures struct {
	Columns []string      `yaml:"columns"`
	Users   []FixtureUser `yaml:"users"`
}

// FixtureUser describes a fixed account, typically the local admin.
type FixtureUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Admin    bool   `yaml:"admin"`
}

// LoadFixtures reads a YAML fixture file. An empty path yields no fixtures.
func LoadFixtures(path string) (*Fixtures, error) {
	if path == "" {
		return &Fixtures{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}
	return ParseFixtures(raw)
}

// ParseFixtures decodes fixture YAML and checks required fields.
func ParseFixtures(raw []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}
	for i, u := range f.Users {
		if u.Username == "" || u.Password == "" {
			return nil, fmt.Errorf("fixture user %d: username and password are required", i)
		}
		if u.Email == "" {
			f.Users[i].Email = u.Username + "@example.com"
		}
	}
	return &f, nil
}
