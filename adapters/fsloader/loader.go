// Package fsloader discovers module descriptors on disk and builds the tiered
// descriptor store from them.
//
// Three roots are scanned. Customer modules live in directories of the
// customer root whose names do not carry the package prefix; local and global
// modules live in "<prefix><name>" directories of their roots. Each module
// directory may hold:
//
//	module.{yaml,yml,json,toml}            base descriptor
//	_freemodule.{yaml,yml,json,toml}       file overlay
//	i18n/<locale>/index.{yaml,yml,json,toml}
package fsloader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/artpar/modcompose/core/schema"
	"github.com/artpar/modcompose/core/store"
	"github.com/hashicorp/go-multierror"
)

// File base names probed inside a module directory.
const (
	BaseFile    = "module"
	OverlayFile = "_freemodule"
	I18nDir     = "i18n"
	I18nFile    = "index"
)

// DefaultPrefix is the package prefix of local and global module directories.
const DefaultPrefix = "free-fe-"

// Sources names the three roots scanned for modules.
type Sources struct {
	CustomerDir string
	LocalDir    string
	GlobalDir   string
	Prefix      string
}

func (s Sources) prefix() string {
	if s.Prefix == "" {
		return DefaultPrefix
	}
	return s.Prefix
}

// root returns the directory scanned for a tier.
func (s Sources) root(t store.Tier) string {
	switch t {
	case store.TierCustomer:
		return s.CustomerDir
	case store.TierLocal:
		return s.LocalDir
	default:
		return s.GlobalDir
	}
}

// Roots returns the configured roots in tier order, skipping empty ones and
// duplicates.
func (s Sources) Roots() []string {
	seen := make(map[string]bool)
	var roots []string
	for _, t := range store.Tiers {
		dir := s.root(t)
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		roots = append(roots, dir)
	}
	return roots
}

// Module is a module directory found on disk.
type Module struct {
	Tier    store.Tier
	Name    string
	Dir     string
	Base    string
	Overlay string
	Locales map[string]string
}

// Discover enumerates the module directories of every tier. Missing roots are
// skipped. The result is ordered by tier, then by name.
func Discover(src Sources) ([]Module, error) {
	var modules []Module
	for _, t := range store.Tiers {
		found, err := discoverTier(src, t)
		if err != nil {
			return nil, err
		}
		modules = append(modules, found...)
	}
	return modules, nil
}

func discoverTier(src Sources, t store.Tier) ([]Module, error) {
	root := src.root(t)
	if root == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s modules in %s: %w", t, root, err)
	}

	prefix := src.prefix()
	var modules []Module
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirName := entry.Name()
		prefixed := strings.HasPrefix(dirName, prefix)

		var name string
		switch {
		case t == store.TierCustomer && !prefixed:
			name = dirName
		case t != store.TierCustomer && prefixed:
			name = strings.TrimPrefix(dirName, prefix)
		default:
			continue
		}
		if name == "" {
			continue
		}

		dir := filepath.Join(root, dirName)
		mod := Module{
			Tier:    t,
			Name:    name,
			Dir:     dir,
			Base:    findDescriptor(dir, BaseFile),
			Overlay: findDescriptor(dir, OverlayFile),
			Locales: findLocales(dir),
		}
		if mod.Base == "" && mod.Overlay == "" && len(mod.Locales) == 0 {
			continue
		}
		modules = append(modules, mod)
	}

	sort.Slice(modules, func(i, j int) bool { return modules[i].Name < modules[j].Name })
	return modules, nil
}

// findDescriptor returns the first existing <dir>/<base><ext>.
func findDescriptor(dir, base string) string {
	for _, ext := range schema.Extensions {
		path := filepath.Join(dir, base+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

func findLocales(dir string) map[string]string {
	entries, err := os.ReadDir(filepath.Join(dir, I18nDir))
	if err != nil {
		return nil
	}
	locales := make(map[string]string)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if path := findDescriptor(filepath.Join(dir, I18nDir, entry.Name()), I18nFile); path != "" {
			locales[entry.Name()] = path
		}
	}
	if len(locales) == 0 {
		return nil
	}
	return locales
}

// Load discovers every module and parses its files into a store. Parse errors
// of all files are collected and returned together with a nil store.
func Load(src Sources) (*store.Store, error) {
	modules, err := Discover(src)
	if err != nil {
		return nil, err
	}

	st := store.New()
	var errs *multierror.Error
	for _, mod := range modules {
		if err := loadModule(st, mod); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("load modules: %w", err)
	}
	return st, nil
}

func loadModule(st *store.Store, mod Module) error {
	var errs *multierror.Error

	if mod.Base != "" {
		desc, err := parseDescriptor(mod.Base, mod.Name)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			st.AddModule(mod.Tier, mod.Name, schema.Static(desc))
		}
	}

	if mod.Overlay != "" {
		desc, err := parseDescriptor(mod.Overlay, mod.Name)
		if err != nil {
			errs = multierror.Append(errs, err)
		} else {
			st.AddFileOverlay(mod.Tier, mod.Name, schema.Static(desc))
		}
	}

	if len(mod.Locales) > 0 {
		bundle := schema.Bundle{}
		for _, locale := range sortedKeys(mod.Locales) {
			b, err := schema.ParseBundleFile(mod.Locales[locale], locale)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			bundle.Merge(b)
		}
		st.AddBundle(mod.Tier, mod.Name, bundle)
	}

	return errs.ErrorOrNil()
}

// parseDescriptor parses a file and names the descriptor after its directory
// when the file does not name it.
func parseDescriptor(path, name string) (*schema.Descriptor, error) {
	desc, err := schema.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if desc.Name == "" {
		desc.Name = name
	}
	return desc, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
