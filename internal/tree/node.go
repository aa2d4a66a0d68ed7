// Package tree define el árbol de decisión que viaja como payload de
// un record y las mutaciones estructurales sobre él. Para la capa de
// persistencia el árbol es un blob; acá es donde se lo entiende.
package tree

import "encoding/json"

// Timeframe horizonte temporal de un nodo.
type Timeframe string

const (
	TimeframeNow    Timeframe = "now"
	TimeframeSoon   Timeframe = "soon"
	TimeframeYears  Timeframe = "years"
	TimeframeDecade Timeframe = "decade"
)

// Sentiment valoración del outcome de un nodo.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Node es un nodo del árbol de decisión. Los hijos van embebidos: el
// árbol completo se serializa como un solo documento JSON.
type Node struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Timeframe   Timeframe `json:"timeframe,omitempty"`
	Sentiment   Sentiment `json:"sentiment,omitempty"`
	// Probability en porcentaje entero 0-100.
	Probability int    `json:"probability,omitempty"`
	Children    []Node `json:"children,omitempty"`
}

// Clone devuelve una copia profunda del nodo y todo su subárbol.
func (n Node) Clone() Node {
	out := n
	if n.Children != nil {
		out.Children = make([]Node, len(n.Children))
		for i := range n.Children {
			out.Children[i] = n.Children[i].Clone()
		}
	}
	return out
}

// Decode parsea un árbol desde su forma serializada.
func Decode(payload []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Encode serializa el árbol.
func Encode(n *Node) ([]byte, error) {
	return json.Marshal(n)
}
