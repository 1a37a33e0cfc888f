package exporter

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ternarybob/indago/internal/models"
)

// knowledgeGraph accumulates entity nodes assembled from extracted records.
// Nodes are keyed by the record's identifying field; duplicate entities merge
// properties with later values winning.
type knowledgeGraph struct {
	nodes []*graphNode
	index map[string]*graphNode
}

type graphNode struct {
	id         string
	entityType string
	props      map[string]any
}

func buildGraph(records []*models.ExtractedRecord) *knowledgeGraph {
	g := &knowledgeGraph{index: make(map[string]*graphNode)}
	for _, record := range records {
		g.addEntity(inferEntityType(record.Fields), record)
	}
	return g
}

// inferEntityType guesses the node type from the record's field names.
func inferEntityType(fields map[string]any) string {
	if _, ok := fields["product_name"]; ok {
		return "Product"
	}
	if _, ok := fields["price"]; ok {
		return "Product"
	}
	if _, ok := fields["article_body"]; ok {
		return "Article"
	}
	return "Entity"
}

func (g *knowledgeGraph) addEntity(entityType string, record *models.ExtractedRecord) *graphNode {
	key := entityKey(entityType, record)
	if key != "" {
		if node, ok := g.index[key]; ok {
			for name, value := range record.Fields {
				node.props[name] = value
			}
			return node
		}
	}

	node := &graphNode{
		id:         uuid.New().String(),
		entityType: entityType,
		props:      make(map[string]any, len(record.Fields)),
	}
	for name, value := range record.Fields {
		node.props[name] = value
	}

	g.nodes = append(g.nodes, node)
	if key != "" {
		g.index[key] = node
	}
	return node
}

// entityKey scopes the record's unique key by entity type. Name keys are a
// weak identity and compare case-insensitively. Empty when the record has no
// identifying field.
func entityKey(entityType string, record *models.ExtractedRecord) string {
	field, value := record.UniqueKey()
	if field == "" {
		return ""
	}
	if field == "name" {
		value = strings.ToLower(value)
	}
	return entityType + ":" + field + ":" + value
}

type graphmlDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []graphmlKey `xml:"key"`
	Graph   graphmlGraph `xml:"graph"`
}

type graphmlKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
	AttrType string `xml:"attr.type,attr"`
}

type graphmlGraph struct {
	ID          string        `xml:"id,attr"`
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphmlNode `xml:"node"`
}

type graphmlNode struct {
	ID   string        `xml:"id,attr"`
	Data []graphmlData `xml:"data"`
}

type graphmlData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// WriteGraphML writes the graph in GraphML. Every attribute name used by any
// node is declared once as a string key; structured values are JSON-encoded.
// A record field literally named "type" is dropped, the entity type wins.
func (g *knowledgeGraph) WriteGraphML(w io.Writer) error {
	attrSet := make(map[string]bool)
	for _, node := range g.nodes {
		for name := range node.props {
			if name != "type" {
				attrSet[name] = true
			}
		}
	}
	attrs := make([]string, 0, len(attrSet)+1)
	for name := range attrSet {
		attrs = append(attrs, name)
	}
	sort.Strings(attrs)
	attrs = append([]string{"type"}, attrs...)

	keyIDs := make(map[string]string, len(attrs))
	keys := make([]graphmlKey, 0, len(attrs))
	for i, name := range attrs {
		id := fmt.Sprintf("d%d", i)
		keyIDs[name] = id
		keys = append(keys, graphmlKey{ID: id, For: "node", AttrName: name, AttrType: "string"})
	}

	doc := graphmlDoc{
		XMLNS: "http://graphml.graphdrawing.org/xmlns",
		Keys:  keys,
		Graph: graphmlGraph{
			ID:          "G",
			EdgeDefault: "directed",
			Nodes:       make([]graphmlNode, 0, len(g.nodes)),
		},
	}

	for _, node := range g.nodes {
		entry := graphmlNode{ID: node.id}
		entry.Data = append(entry.Data, graphmlData{Key: keyIDs["type"], Value: node.entityType})

		names := make([]string, 0, len(node.props))
		for name := range node.props {
			if name != "type" {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			entry.Data = append(entry.Data, graphmlData{Key: keyIDs[name], Value: graphValue(node.props[name])})
		}

		doc.Graph.Nodes = append(doc.Graph.Nodes, entry)
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// graphValue renders one node attribute. Structured values are JSON-encoded
// to fit GraphML's flat attribute model.
func graphValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	default:
		return fmt.Sprintf("%v", val)
	}
}
