package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awalterschulze/gographviz"
	"github.com/tryfix/kjoin/join"
	"github.com/tryfix/kjoin/join/batch"
	"github.com/tryfix/kjoin/join/stream"
)

// Graph renders configured join operators as a Graphviz digraph.
type Graph struct {
	parent   string
	vizGraph *gographviz.Graph
}

func NewGraph() (*Graph, error) {
	parent := `root`
	g := gographviz.NewGraph()
	if err := g.SetName(parent); err != nil {
		return nil, err
	}

	if err := g.SetDir(true); err != nil {
		return nil, err
	}

	if err := g.AddAttr(parent, `splines`, `ortho`); err != nil {
		return nil, err
	}

	if err := g.AddNode(parent, `def`, map[string]string{
		`shape`: `plaintext`,
		`label`: `<
     		<table BORDER="0" CELLBORDER="1" CELLSPACING="0">
       			<tr><td WIDTH="50" BGCOLOR="deepskyblue1"></td><td><B>Input</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="slateblue4"></td><td><B>Merge Join</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="brown"></td><td><B>Interval Join</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="grey95"></td><td><B>Spill Buffer</B></td></tr>
       			<tr><td WIDTH="50" BGCOLOR="orange"></td><td><B>Collector</B></td></tr>
     		</table>
  >`,
	}); err != nil {
		return nil, err
	}

	return &Graph{
		parent:   parent,
		vizGraph: g,
	}, nil
}

// MergeJoin draws a batch join reading two sorted inputs through a spill buffer.
func (g *Graph) MergeJoin(name, left, right string, joiner *batch.Joiner) error {
	node := nodeName(name)
	if err := g.input(left); err != nil {
		return err
	}

	if err := g.input(right); err != nil {
		return err
	}

	if err := g.vizGraph.AddNode(g.parent, node, map[string]string{
		`fontcolor`: `grey100`,
		`fillcolor`: `slateblue4`,
		`style`:     `filled`,
		`shape`:     `square`,
		`label`:     fmt.Sprintf(`"%s"`, nodeInfo(`merge`, name, map[string]string{`type`: joiner.Type.String()})),
	}); err != nil {
		return err
	}

	probe, buffered := left, right
	if joiner.Type == join.RightOuterJoin {
		probe, buffered = right, left
	}

	if err := g.vizGraph.AddEdge(nodeName(probe), node, true, map[string]string{`label`: `"probe"`}); err != nil {
		return err
	}

	buf := node + `_buffer`
	if err := g.vizGraph.AddNode(g.parent, buf, map[string]string{
		`fillcolor`: `grey95`,
		`style`:     `filled`,
		`shape`:     `cylinder`,
		`label`:     `"match buffer"`,
	}); err != nil {
		return err
	}

	if err := g.vizGraph.AddEdge(nodeName(buffered), buf, true, map[string]string{`label`: `"buffered"`}); err != nil {
		return err
	}

	if err := g.vizGraph.AddEdge(buf, node, true, nil); err != nil {
		return err
	}

	return g.collector(node)
}

// IntervalJoin draws a stream join with its bounds and watermark delay.
func (g *Graph) IntervalJoin(left, right string, j *stream.TimeBoundedStreamJoin) error {
	node := nodeName(j.Name())
	for _, in := range []string{left, right} {
		if err := g.input(in); err != nil {
			return err
		}
	}

	label := nodeInfo(`interval`, j.Name(), map[string]string{
		`type`:             j.Type(),
		`domain`:           j.Domain().String(),
		`left_relative`:    fmt.Sprint(j.LeftRelativeSize()),
		`right_relative`:   fmt.Sprint(j.RightRelativeSize()),
		`max_output_delay`: fmt.Sprint(j.MaxOutputDelay()),
	})

	if err := g.vizGraph.AddNode(g.parent, node, map[string]string{
		`color`:    `brown`,
		`shape`:    `square`,
		`fontsize`: `11`,
		`style`:    `filled`,
		`label`:    fmt.Sprintf(`"%s"`, label),
	}); err != nil {
		return err
	}

	if err := g.vizGraph.AddEdge(nodeName(left), node, true, map[string]string{`label`: `"left"`}); err != nil {
		return err
	}

	if err := g.vizGraph.AddEdge(nodeName(right), node, true, map[string]string{`label`: `"right"`}); err != nil {
		return err
	}

	return g.collector(node)
}

func (g *Graph) input(name string) error {
	node := nodeName(name)
	if g.vizGraph.IsNode(node) {
		return nil
	}

	return g.vizGraph.AddNode(g.parent, node, map[string]string{
		`color`:     `black`,
		`fillcolor`: `deepskyblue1`,
		`style`:     `filled`,
		`shape`:     `oval`,
		`label`:     fmt.Sprintf(`"%s"`, name),
	})
}

func (g *Graph) collector(parent string) error {
	sink := parent + `_collector`
	if err := g.vizGraph.AddNode(g.parent, sink, map[string]string{
		`fillcolor`: `orange`,
		`style`:     `filled`,
		`shape`:     `oval`,
		`label`:     `"collector"`,
	}); err != nil {
		return err
	}

	return g.vizGraph.AddEdge(parent, sink, true, nil)
}

func (g *Graph) Build() string {
	return g.vizGraph.String()
}

func nodeName(name string) string {
	name = strings.ReplaceAll(name, `.`, `_`)
	return strings.ReplaceAll(name, `-`, `_`)
}

func nodeInfo(typ string, name string, info map[string]string) string {
	str := fmt.Sprintf(`type:%s\nname:%s\n`, typ, name)

	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		str += fmt.Sprintf(`%s:%s\n`, k, info[k])
	}

	return str
}
