package services

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"whoisgate/internal/classify"
	"whoisgate/internal/registry"
)

// packageInfo is the common shape every registry-specific fetcher
// normalizes into, per spec.md §6's package-registry suffix group.
type packageInfo struct {
	Name        string
	Version     string
	Description string
	Homepage    string
	License     string
	URL         string
}

func formatPackageInfo(registrySource string, p packageInfo) string {
	var b strings.Builder
	b.WriteString(comment("%s package: %s", registrySource, p.Name))
	if p.Version != "" {
		fmt.Fprintf(&b, "version: %s\n", p.Version)
	}
	if p.Description != "" {
		fmt.Fprintf(&b, "description: %s\n", p.Description)
	}
	if p.License != "" {
		fmt.Fprintf(&b, "license: %s\n", p.License)
	}
	if p.Homepage != "" {
		fmt.Fprintf(&b, "homepage: %s\n", p.Homepage)
	}
	if p.URL != "" {
		fmt.Fprintf(&b, "registry-url: %s\n", p.URL)
	}
	return b.String()
}

type crateResponse struct {
	Crate struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Homepage    string `json:"homepage"`
		MaxVersion  string `json:"max_version"`
	} `json:"crate"`
}

func (d *Deps) fetchCargo(ctx context.Context, name string) (packageInfo, error) {
	var r crateResponse
	apiURL := "https://crates.io/api/v1/crates/" + url.PathEscape(name)
	if err := d.getJSON(ctx, apiURL, &r); err != nil {
		return packageInfo{}, err
	}
	return packageInfo{
		Name: r.Crate.Name, Version: r.Crate.MaxVersion,
		Description: r.Crate.Description, Homepage: r.Crate.Homepage,
		URL: "https://crates.io/crates/" + name,
	}, nil
}

type npmResponse struct {
	Name     string `json:"name"`
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
	Description string `json:"description"`
	Homepage    string `json:"homepage"`
	License     string `json:"license"`
}

func (d *Deps) fetchNPM(ctx context.Context, name string) (packageInfo, error) {
	var r npmResponse
	apiURL := "https://registry.npmjs.org/" + url.PathEscape(name)
	if err := d.getJSON(ctx, apiURL, &r); err != nil {
		return packageInfo{}, err
	}
	return packageInfo{
		Name: r.Name, Version: r.DistTags.Latest, Description: r.Description,
		Homepage: r.Homepage, License: r.License,
		URL: "https://www.npmjs.com/package/" + name,
	}, nil
}

type pypiResponse struct {
	Info struct {
		Name     string `json:"name"`
		Version  string `json:"version"`
		Summary  string `json:"summary"`
		HomePage string `json:"home_page"`
		License  string `json:"license"`
	} `json:"info"`
}

func (d *Deps) fetchPyPI(ctx context.Context, name string) (packageInfo, error) {
	var r pypiResponse
	apiURL := "https://pypi.org/pypi/" + url.PathEscape(name) + "/json"
	if err := d.getJSON(ctx, apiURL, &r); err != nil {
		return packageInfo{}, err
	}
	return packageInfo{
		Name: r.Info.Name, Version: r.Info.Version, Description: r.Info.Summary,
		Homepage: r.Info.HomePage, License: r.Info.License,
		URL: "https://pypi.org/project/" + name + "/",
	}, nil
}

type aurResponse struct {
	Results []struct {
		Name        string   `json:"Name"`
		Version     string   `json:"Version"`
		Description string   `json:"Description"`
		URL         string   `json:"URL"`
		License     []string `json:"License"`
	} `json:"results"`
}

func (d *Deps) fetchAUR(ctx context.Context, name string) (packageInfo, error) {
	var r aurResponse
	apiURL := "https://aur.archlinux.org/rpc/v5/info?arg=" + url.QueryEscape(name)
	if err := d.getJSON(ctx, apiURL, &r); err != nil {
		return packageInfo{}, err
	}
	if len(r.Results) == 0 {
		return packageInfo{}, fmt.Errorf("package %q not found on AUR", name)
	}
	pkg := r.Results[0]
	lic := strings.Join(pkg.License, ", ")
	return packageInfo{
		Name: pkg.Name, Version: pkg.Version, Description: pkg.Description,
		Homepage: pkg.URL, License: lic,
		URL: "https://aur.archlinux.org/packages/" + name,
	}, nil
}

// packageFetchers maps a suffix registry tag onto its fetch function.
// Registries without a convenient per-package JSON API (Debian,
// Ubuntu, NixOS's search-only index, openSUSE, AOSC, EPEL, Alma,
// OpenWrt, Modrinth, CurseForge) are listed in genericPackageIndexes
// instead and answered with a search link rather than a scraped field
// mapping.
func (d *Deps) packageFetchers() map[string]func(context.Context, string) (packageInfo, error) {
	return map[string]func(context.Context, string) (packageInfo, error){
		"CARGO": d.fetchCargo,
		"NPM":   d.fetchNPM,
		"PYPI":  d.fetchPyPI,
		"AUR":   d.fetchAUR,
	}
}

var genericPackageIndexes = map[string]string{
	"DEBIAN":     "https://packages.debian.org/search?keywords=",
	"UBUNTU":     "https://packages.ubuntu.com/search?keywords=",
	"NIXOS":      "https://search.nixos.org/packages?query=",
	"OPENSUSE":   "https://software.opensuse.org/package/",
	"AOSC":       "https://packages.aosc.io/packages/",
	"EPEL":       "https://src.fedoraproject.org/rpms/",
	"ALMA":       "https://wiki.almalinux.org/",
	"OPENWRT":    "https://openwrt.org/packages/pkgdata/",
	"MODRINTH":   "https://modrinth.com/mod/",
	"CURSEFORGE": "https://www.curseforge.com/minecraft/search?search=",
}

// registerPackages wires every -CARGO/-NPM/-PYPI/.../-CURSEFORGE
// suffix to the KindPackage kind, dispatching on the classifier's
// Registry field.
func (d *Deps) registerPackages(reg *registry.Registry) {
	fetchers := d.packageFetchers()
	reg.Register(classify.KindPackage, func(ctx *registry.Context) (string, error) {
		source := ctx.Query.Registry
		if fetch, ok := fetchers[source]; ok {
			info, err := fetch(ctx.Ctx, ctx.Query.Payload)
			if err != nil {
				return comment("%s package lookup failed: %v", source, err), nil
			}
			return formatPackageInfo(source, info), nil
		}
		if base, ok := genericPackageIndexes[source]; ok {
			return comment("%s package search", source) +
				fmt.Sprintf("package: %s\nsearch-url: %s%s\n", ctx.Query.Payload, base, url.QueryEscape(ctx.Query.Payload)), nil
		}
		return comment("unknown package registry %q", source), nil
	}, false)
}
