package workbook

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/onlyadaydreamer/grid/pkg/sheet"
	"github.com/onlyadaydreamer/grid/pkg/store"
	"github.com/onlyadaydreamer/grid/pkg/types"
)

// Marshal writes the contents of s as a workbook. Formula cells that carry a
// computed result are written as mappings so the result survives a reload.
func Marshal(s *store.Store) ([]byte, error) {
	sheets := &yaml.Node{Kind: yaml.SequenceNode}
	for _, sh := range s.ListSheets() {
		cells, err := s.Cells(sh.Name)
		if err != nil {
			return nil, err
		}
		node, err := sheetNode(sh, cells)
		if err != nil {
			return nil, err
		}
		sheets.Content = append(sheets.Content, node)
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content, scalar("sheets"), sheets)

	names := s.Names()
	if len(names) > 0 {
		mapping := &yaml.Node{Kind: yaml.MappingNode}
		for _, k := range types.SortedKeys(names) {
			mapping.Content = append(mapping.Content, scalar(k), scalar(names[k].String()))
		}
		root.Content = append(root.Content, scalar("names"), mapping)
	}

	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding workbook: %w", err)
	}
	return out, nil
}

func sheetNode(sh *store.Sheet, cells []store.Cell) (*yaml.Node, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	node.Content = append(node.Content,
		scalar("name"), scalar(sh.Name),
		scalar("rows"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(sh.RowCount)},
		scalar("columns"), &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(sh.ColumnCount)},
	)
	if len(cells) == 0 {
		return node, nil
	}

	mapping := &yaml.Node{Kind: yaml.MappingNode}
	for _, c := range cells {
		val, err := cellNode(c.CellSnapshot)
		if err != nil {
			return nil, fmt.Errorf("encoding cell %s: %w", c.Position, err)
		}
		mapping.Content = append(mapping.Content, scalar(c.Position.A1()), val)
	}
	node.Content = append(node.Content, scalar("cells"), mapping)
	return node, nil
}

func cellNode(snap sheet.CellSnapshot) (*yaml.Node, error) {
	switch {
	case snap.DataType == sheet.DataNumber:
		if _, err := strconv.ParseFloat(snap.Text, 64); err == nil {
			return &yaml.Node{Kind: yaml.ScalarNode, Value: snap.Text}, nil
		}
	case snap.DataType == sheet.DataBoolean:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: snap.Text}, nil
	case snap.DataType == sheet.DataFormula && snap.ResultType == "":
		return scalar(snap.Text), nil
	case snap.DataType == sheet.DataString:
		return scalar(snap.Text), nil
	}

	node := &yaml.Node{}
	if err := node.Encode(snap); err != nil {
		return nil, err
	}
	return node, nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}
