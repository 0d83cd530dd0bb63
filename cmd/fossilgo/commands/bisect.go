package commands

import (
	"context"
	"fmt"

	"github.com/fossilgo/fossilgo/internal/graph"
)

// BisectCmd implements `fossilgo bisect {bad|good|next|reset|vlist}`.
type BisectCmd struct {
	Bad   BisectBadCmd   `cmd:"" help:"Mark a commit as bad."`
	Good  BisectGoodCmd  `cmd:"" help:"Mark a commit as good."`
	Next  BisectNextCmd  `cmd:"" help:"Compute the next commit to test."`
	Reset BisectResetCmd `cmd:"" help:"Clear all bisect state."`
	VList BisectVListCmd `cmd:"" name:"vlist" help:"List the current bad/good interval."`
}

type BisectBadCmd struct {
	Rid int64 `arg:"" help:"rid to mark bad."`
}

func (c *BisectBadCmd) Run(g *Global, root *Root) error {
	r, _, _, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	return graph.BisectMark(context.Background(), r, c.Rid, true)
}

type BisectGoodCmd struct {
	Rid int64 `arg:"" help:"rid to mark good."`
}

func (c *BisectGoodCmd) Run(g *Global, root *Root) error {
	r, _, _, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	return graph.BisectMark(context.Background(), r, c.Rid, false)
}

type BisectNextCmd struct{}

func (c *BisectNextCmd) Run(g *Global, root *Root) error {
	r, _, _, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	rid, err := graph.BisectNext(context.Background(), r)
	if err != nil {
		return err
	}
	fmt.Println(rid)
	return nil
}

type BisectResetCmd struct{}

func (c *BisectResetCmd) Run(g *Global, root *Root) error {
	r, _, _, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	return graph.BisectReset(context.Background(), r)
}

type BisectVListCmd struct{}

func (c *BisectVListCmd) Run(g *Global, root *Root) error {
	r, _, _, err := OpenRepo(root)
	if err != nil {
		return err
	}
	defer r.Close()
	entries, err := graph.BisectVList(context.Background(), r)
	if err != nil {
		return err
	}
	for _, e := range entries {
		status := "untested"
		if e.Marked {
			if e.Bad {
				status = "bad"
			} else {
				status = "good"
			}
		}
		fmt.Printf("%d  %s\n", e.Rid, status)
	}
	return nil
}
