// This command fills in the published SHA-256 of every download in
// catalog.in.yaml and writes the result to catalog.yaml, which is
// compiled into pyrite. It refuses to write a helper entry whose
// digest it could not find.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/replit/pyrite/internal/config"
	"github.com/replit/pyrite/internal/fetch"
	"github.com/replit/pyrite/internal/sources"
	"github.com/replit/pyrite/internal/tui"
	"github.com/replit/pyrite/internal/util"
	"gopkg.in/yaml.v2"
)

const header = `# Code generated by gencatalog from catalog.in.yaml. DO NOT EDIT.
#
# Interpreters without a sha256 are verified against the
# "<url>.sha256" file published next to the archive when one exists.
# Helper entries always carry a sha256.

`

func main() {
	in := flag.String("in", "catalog.in.yaml", "the catalog to fill digests into")
	out := flag.String("out", "catalog.yaml", "the destination file for the generated catalog")
	flag.Parse()

	data, err := os.ReadFile(*in)
	if err != nil {
		util.Die("%s: %s", *in, err)
	}
	var file sources.CatalogFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		util.Die("%s: %s", *in, err)
	}

	missing, err := sources.FillDigests(context.Background(), &file, fetch.New(&config.Config{}))
	if err != nil {
		util.Die("%s", err)
	}
	for _, url := range missing {
		tui.Warn("no digest published for %s", url)
	}

	generated, err := yaml.Marshal(&file)
	if err != nil {
		util.Die("marshal catalog: %s", err)
	}
	if err := util.WriteAtomic(*out, append([]byte(header), generated...)); err != nil {
		util.Die("%s: %s", *out, err)
	}
	util.ProgressMsg("wrote " + *out)
}
