package commands

import (
	"context"
	"fmt"

	"github.com/fossilgo/fossilgo/internal/bundleio"
	"github.com/fossilgo/fossilgo/internal/errs"
)

// BundleCmd implements `fossilgo bundle {export|import|ls|extract|append}`.
type BundleCmd struct {
	Export  BundleExportCmd  `cmd:"" help:"Package rids into a bundle file."`
	Import  BundleImportCmd  `cmd:"" help:"Ingest every artifact in a bundle file into the repository."`
	Ls      BundleLsCmd      `cmd:"" help:"List artifacts catalogued in a bundle file."`
	Extract BundleExtractCmd `cmd:"" help:"Extract a single artifact from a bundle file."`
	Append  BundleAppendCmd  `cmd:"" help:"Add local files to a bundle file."`
}

type BundleExportCmd struct {
	Bundle string  `arg:"" help:"Bundle file to create."`
	Rid    []int64 `arg:"" help:"Repository-local rids to package."`
}

func (c *BundleExportCmd) Run(g *Global, root *Root) error {
	r, _, _, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := bundleio.Export(context.Background(), r.Store, r, c.Rid, c.Bundle); err != nil {
		return err
	}
	g.Logger.Info("bundle export complete", "bundle", c.Bundle, "count", len(c.Rid))
	return nil
}

type BundleImportCmd struct {
	Bundle string `arg:"" help:"Bundle file to import."`
}

func (c *BundleImportCmd) Run(g *Global, root *Root) error {
	r, cfg, policy, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()

	ctx := context.Background()
	tx, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	imported, err := bundleio.Import(ctx, r.Store, tx, c.Bundle, policy)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if _, err := RunRebuild(ctx, r, NewNotifierFromConfig(cfg)); err != nil {
		return err
	}
	g.Logger.Info("bundle import complete", "bundle", c.Bundle, "count", len(imported))
	return nil
}

type BundleLsCmd struct {
	Bundle string `arg:"" help:"Bundle file to list."`
}

func (c *BundleLsCmd) Run(g *Global, root *Root) error {
	entries, err := bundleio.Ls(c.Bundle)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %d\n", e.UUID, e.Size)
	}
	return nil
}

type BundleExtractCmd struct {
	Bundle string `arg:"" help:"Bundle file to read from."`
	UUID   string `arg:"" help:"Artifact UUID to extract."`
	Dest   string `arg:"" help:"Destination file path."`
}

func (c *BundleExtractCmd) Run(g *Global, root *Root) error {
	if err := bundleio.Extract(c.Bundle, c.UUID, c.Dest); err != nil {
		return err
	}
	g.Logger.Info("bundle extract complete", "uuid", c.UUID, "dest", c.Dest)
	return nil
}

type BundleAppendCmd struct {
	Bundle string   `arg:"" help:"Bundle file to append to (created if absent)."`
	Files  []string `arg:"" help:"Local files to add."`
}

func (c *BundleAppendCmd) Run(g *Global, root *Root) error {
	r, _, policy, err := OpenRepo(root)
	if err != nil {
		return errs.Wrap(err, errs.CategoryUsage, "append requires a repository context for its hash policy")
	}
	defer r.Close()
	return bundleio.Append(c.Bundle, c.Files, policy)
}
