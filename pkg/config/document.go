package config

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/imdario/mergo"
	"github.com/jlkiri/ikki/pkg/ikkierr"
	"github.com/jlkiri/ikki/pkg/schedule"
)

// node is one entry of the parsed document tree: a name, its
// positional arguments, its key=value properties, and any nested
// children in braces. This is a deliberately small subset of the KDL
// grammar, just enough to express images/dependencies/service blocks.
type node struct {
	name     string
	args     []string
	props    map[string]string
	children []*node
}

func (n *node) prop(key string) string {
	return n.props[key]
}

func (n *node) childrenNamed(name string) []*node {
	var out []*node
	for _, c := range n.children {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (n *node) child(name string) *node {
	named := n.childrenNamed(name)
	if len(named) == 0 {
		return nil
	}
	return named[0]
}

// ParseDocument parses the raw document text into a Config: the image
// set plus the precomputed build order. filename is only used in
// error messages.
func ParseDocument(filename, input string) (*Config, error) {
	tokens, err := tokenize(input)
	if err != nil {
		return nil, ikkierr.ConfigInvalid(fmt.Sprintf("%s: %s", filename, err))
	}

	p := &parser{tokens: tokens}
	roots, err := p.parseNodes(false)
	if err != nil {
		return nil, ikkierr.ConfigInvalid(fmt.Sprintf("%s: %s", filename, err))
	}

	imagesNode := findTopLevel(roots, "images")
	if imagesNode == nil {
		return nil, ikkierr.ConfigInvalid("missing `images` configuration")
	}

	images, err := decodeImages(imagesNode)
	if err != nil {
		return nil, err
	}

	var order schedule.Order
	if depsNode := findTopLevel(roots, "dependencies"); depsNode != nil {
		g := parseDeps(depsNode)
		order, err = g.Toposort()
		if err != nil {
			return nil, err
		}
	} else {
		order = schedule.SingleLayer(imageNames(images))
	}

	return &Config{Images: images, BuildOrder: order}, nil
}

func findTopLevel(roots []*node, name string) *node {
	for _, n := range roots {
		if n.name == name {
			return n
		}
	}
	return nil
}

func imageNames(images []Image) []string {
	names := make([]string, len(images))
	for i, img := range images {
		names[i] = img.Name
	}
	return names
}

// parseDeps reads the `dependencies` block directly: every nested
// child node name depends on its parent node name, edge parent ->
// child, applied recursively through the whole tree.
func parseDeps(depsNode *node) schedule.Graph {
	g := schedule.NewGraph()
	var walk func(n *node)
	walk = func(n *node) {
		for _, child := range n.children {
			g.Before(n.name, child.name)
			walk(child)
		}
	}
	for _, root := range depsNode.children {
		walk(root)
	}
	return g
}

var defaultImage = Image{DockerfilePath: "Dockerfile"}

func decodeImages(imagesNode *node) ([]Image, error) {
	var images []Image
	for _, n := range imagesNode.childrenNamed("image") {
		if len(n.args) == 0 {
			return nil, ikkierr.ConfigInvalid("image node is missing its name argument")
		}

		img := Image{
			Name:           n.args[0],
			SourcePath:     n.prop("path"),
			DockerfilePath: n.prop("file"),
			PullRef:        n.prop("pull"),
		}

		if err := mergo.Merge(&img, defaultImage); err != nil {
			return nil, ikkierr.Internal("merging image defaults: " + err.Error())
		}

		if img.SourcePath == "" && img.PullRef == "" {
			return nil, ikkierr.ConfigInvalid(fmt.Sprintf("image %q needs either `path` or `pull`", img.Name))
		}

		for _, ba := range n.childrenNamed("build-arg") {
			if len(ba.args) < 2 {
				return nil, ikkierr.ConfigInvalid(fmt.Sprintf("build-arg on image %q needs a key and a value", img.Name))
			}
			img.BuildArgs = append(img.BuildArgs, KeyValue{Key: ba.args[0], Value: ba.args[1]})
		}

		if sn := n.child("service"); sn != nil {
			svc, err := decodeService(sn)
			if err != nil {
				return nil, err
			}
			img.Service = svc
		}

		if sec := n.child("secret"); sec != nil {
			img.Secret = &Secret{ID: sec.prop("id"), Src: sec.prop("src")}
		}

		images = append(images, img)
	}
	return images, nil
}

func decodeService(n *node) (*Service, error) {
	svc := &Service{}

	if ports := n.child("ports"); ports != nil {
		svc.Ports = append(svc.Ports, ports.args...)
	}

	for _, e := range n.childrenNamed("env") {
		if len(e.args) < 2 {
			return nil, ikkierr.ConfigInvalid("env entry needs a key and a value")
		}
		svc.Env = append(svc.Env, KeyValue{Key: e.args[0], Value: e.args[1]})
	}

	if user := n.child("user"); user != nil && len(user.args) > 0 {
		svc.User = user.args[0]
	}

	for _, m := range n.childrenNamed("mount") {
		svc.Mounts = append(svc.Mounts, Mount{
			Type: m.prop("type"),
			Src:  m.prop("src"),
			Dest: m.prop("dest"),
		})
	}

	if networks := n.child("networks"); networks != nil {
		svc.Networks = append(svc.Networks, networks.args...)
	}

	return svc, nil
}

// --- tokenizer ---

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokEquals
	tokLBrace
	tokRBrace
	tokNewline
	tokEOF
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	runes := []rune(input)
	i := 0
	n := len(runes)

	for i < n {
		r := runes[i]

		switch {
		case r == '\n':
			tokens = append(tokens, token{kind: tokNewline})
			i++
		case r == ';':
			tokens = append(tokens, token{kind: tokNewline})
			i++
		case unicode.IsSpace(r):
			i++
		case r == '/' && i+1 < n && runes[i+1] == '/':
			for i < n && runes[i] != '\n' {
				i++
			}
		case r == '{':
			tokens = append(tokens, token{kind: tokLBrace})
			i++
		case r == '}':
			tokens = append(tokens, token{kind: tokRBrace})
			i++
		case r == '=':
			tokens = append(tokens, token{kind: tokEquals})
			i++
		case r == '"':
			j := i + 1
			var sb strings.Builder
			closed := false
			for j < n {
				if runes[j] == '\\' && j+1 < n {
					sb.WriteRune(runes[j+1])
					j += 2
					continue
				}
				if runes[j] == '"' {
					closed = true
					j++
					break
				}
				sb.WriteRune(runes[j])
				j++
			}
			if !closed {
				return nil, fmt.Errorf("unterminated string literal")
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String()})
			i = j
		case isIdentRune(r):
			j := i
			for j < n && isIdentRune(runes[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokIdent, text: string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q", r)
		}
	}

	tokens = append(tokens, token{kind: tokEOF})
	return tokens, nil
}

func isIdentRune(r rune) bool {
	if unicode.IsSpace(r) {
		return false
	}
	switch r {
	case '{', '}', '=', '"', ';':
		return false
	}
	return true
}

// --- recursive descent parser ---

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) skipNewlines() {
	for p.peek().kind == tokNewline {
		p.advance()
	}
}

// parseNodes parses a sequence of sibling nodes, stopping at '}' (if
// nested) or EOF (at the document root).
func (p *parser) parseNodes(nested bool) ([]*node, error) {
	var nodes []*node
	for {
		p.skipNewlines()
		if p.peek().kind == tokEOF {
			if nested {
				return nil, fmt.Errorf("unterminated block, expected '}'")
			}
			return nodes, nil
		}
		if p.peek().kind == tokRBrace {
			if !nested {
				return nil, fmt.Errorf("unexpected '}'")
			}
			return nodes, nil
		}

		n, err := p.parseNode()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
}

func (p *parser) parseNode() (*node, error) {
	nameTok := p.advance()
	if nameTok.kind != tokIdent && nameTok.kind != tokString {
		return nil, fmt.Errorf("expected a node name, found %v", nameTok)
	}

	n := &node{name: nameTok.text, props: map[string]string{}}

	for {
		switch p.peek().kind {
		case tokString:
			n.args = append(n.args, p.advance().text)
		case tokIdent:
			// Could be `key=value` or a bare argument token.
			ident := p.advance()
			if p.peek().kind == tokEquals {
				p.advance()
				valTok := p.advance()
				if valTok.kind != tokString && valTok.kind != tokIdent {
					return nil, fmt.Errorf("expected a value after '=' for property %q", ident.text)
				}
				n.props[ident.text] = valTok.text
			} else {
				n.args = append(n.args, ident.text)
			}
		case tokLBrace:
			p.advance()
			children, err := p.parseNodes(true)
			if err != nil {
				return nil, err
			}
			n.children = children
			if p.peek().kind != tokRBrace {
				return nil, fmt.Errorf("expected '}' to close block for node %q", n.name)
			}
			p.advance()
			return n, nil
		case tokNewline, tokEOF, tokRBrace:
			return n, nil
		default:
			return nil, fmt.Errorf("unexpected token while parsing node %q", n.name)
		}
	}
}
