// Package recipe resolves recipe names to compiled-in step generators and
// provides the read-only property bag recipes consume. Resolution is
// driven by explicit configuration (search roots in priority order, name
// aliases, a minimum engine version), never by process-wide discovery.
package recipe

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/stepline-ci/stepline/runner"
	"github.com/stepline-ci/stepline/types"
)

// ErrRecipeNotFound is returned when no search root knows the requested
// recipe. The run reacts with a failed setup step and exit code 2.
var ErrRecipeNotFound = errors.New("recipe not found")

// Context is the view of the run a recipe generates steps against.
type Context struct {
	// Properties is the merged factory/build property bag, read-only.
	Properties *Properties

	// History is the live step history of the run. Generators may consult
	// it between pulls to react to earlier results.
	History *types.StepHistory
}

// GenStepsFunc produces a recipe's step stream: a list of top-level items,
// each a step, a batch, or a live generator.
type GenStepsFunc func(c *Context) ([]runner.Item, error)

// Recipe binds a name to its step generator.
type Recipe struct {
	Name     string
	GenSteps GenStepsFunc
}

// Registry is one search root of recipes.
type Registry struct {
	name    string
	recipes map[string]*Recipe
}

// NewRegistry returns an empty registry named after its search root.
func NewRegistry(name string) *Registry {
	return &Registry{name: name, recipes: make(map[string]*Recipe)}
}

// Name returns the search root's name.
func (r *Registry) Name() string { return r.name }

// Register adds a recipe. Registering the same name twice is a
// programming error.
func (r *Registry) Register(rec *Recipe) error {
	if rec == nil || rec.Name == "" || rec.GenSteps == nil {
		return fmt.Errorf("registry %q: recipe must have a name and a generator", r.name)
	}
	if _, ok := r.recipes[rec.Name]; ok {
		return fmt.Errorf("registry %q: recipe %q registered twice", r.name, rec.Name)
	}
	r.recipes[rec.Name] = rec
	return nil
}

// MustRegister is Register for package-level wiring, panicking on misuse.
func (r *Registry) MustRegister(rec *Recipe) {
	if err := r.Register(rec); err != nil {
		panic(err)
	}
}

// Lookup returns the recipe registered under name.
func (r *Registry) Lookup(name string) (*Recipe, bool) {
	rec, ok := r.recipes[name]
	return rec, ok
}

// Names returns the sorted recipe names in this registry.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.recipes))
	for name := range r.recipes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolverConfig is the YAML-supplied resolution policy.
type ResolverConfig struct {
	// MinEngine is the minimum engine version (semver, "vX.Y.Z") the
	// recipe set requires. Resolution fails outright on an older engine.
	MinEngine string `yaml:"min_engine,omitempty"`

	// Aliases maps alternate names onto canonical recipe names.
	Aliases map[string]string `yaml:"aliases,omitempty"`

	// Roots restricts and orders the enabled search roots by name. Empty
	// means every configured root, in registration order.
	Roots []string `yaml:"roots,omitempty"`
}

// LoadResolverConfig reads a ResolverConfig from a YAML file.
func LoadResolverConfig(path string) (*ResolverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read resolver config: %w", err)
	}
	var cfg ResolverConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse resolver config: %w", err)
	}
	return &cfg, nil
}

// Resolver locates recipes across its search roots, first match wins.
type Resolver struct {
	roots   []*Registry
	modules map[string]*Registry
	aliases map[string]string
	log     log.Logger
}

// NewResolver builds a resolver from explicit configuration. roots are
// consulted in order; modules serve the "module:example" form. cfg may be
// nil for default policy.
func NewResolver(cfg *ResolverConfig, engineVersion string, roots []*Registry,
	modules map[string]*Registry, logger log.Logger) (*Resolver, error) {

	if logger == nil {
		logger = log.New()
	}
	if cfg == nil {
		cfg = &ResolverConfig{}
	}
	if cfg.MinEngine != "" {
		if !semver.IsValid(cfg.MinEngine) {
			return nil, fmt.Errorf("min_engine %q is not a valid semantic version", cfg.MinEngine)
		}
		if !semver.IsValid(engineVersion) {
			return nil, fmt.Errorf("engine version %q is not a valid semantic version", engineVersion)
		}
		if semver.Compare(engineVersion, cfg.MinEngine) < 0 {
			return nil, fmt.Errorf("recipe set requires engine %s or newer, running %s",
				cfg.MinEngine, engineVersion)
		}
	}

	if len(cfg.Roots) > 0 {
		byName := make(map[string]*Registry, len(roots))
		for _, root := range roots {
			byName[root.Name()] = root
		}
		ordered := make([]*Registry, 0, len(cfg.Roots))
		for _, name := range cfg.Roots {
			root, ok := byName[name]
			if !ok {
				return nil, fmt.Errorf("resolver config names unknown root %q", name)
			}
			ordered = append(ordered, root)
		}
		roots = ordered
	}

	return &Resolver{
		roots:   roots,
		modules: modules,
		aliases: cfg.Aliases,
		log:     logger,
	}, nil
}

// Resolve returns the recipe for name. Names of the form "module:example"
// are looked up in the module registries; example recipe names must end in
// "example". Everything else walks the search roots in priority order.
func (r *Resolver) Resolve(name string) (*Recipe, error) {
	if alias, ok := r.aliases[name]; ok {
		r.log.Debug("Resolved recipe alias", "name", name, "canonical", alias)
		name = alias
	}

	if module, example, ok := strings.Cut(name, ":"); ok {
		if !strings.HasSuffix(example, "example") {
			return nil, fmt.Errorf("%w: %q: module recipes must be examples", ErrRecipeNotFound, name)
		}
		reg, ok := r.modules[module]
		if !ok {
			return nil, fmt.Errorf("%w: unknown module %q", ErrRecipeNotFound, module)
		}
		rec, ok := reg.Lookup(example)
		if !ok {
			return nil, fmt.Errorf("%w: module %q has no recipe %q", ErrRecipeNotFound, module, example)
		}
		return rec, nil
	}

	for _, root := range r.roots {
		if rec, ok := root.Lookup(name); ok {
			r.log.Debug("Resolved recipe", "name", name, "root", root.Name())
			return rec, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrRecipeNotFound, name)
}
