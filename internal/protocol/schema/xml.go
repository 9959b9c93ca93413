package schema

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// Document is one protocol description, already read into memory.
type Document struct {
	Path string
	Data []byte
}

type rawProtocol struct {
	XMLName     xml.Name        `xml:"protocol"`
	Name        string          `xml:"name,attr"`
	Copyright   *rawText        `xml:"copyright"`
	Description *rawDescription `xml:"description"`
	Interfaces  []rawInterface  `xml:"interface"`
}

type rawText struct {
	Text string `xml:",chardata"`
}

type rawDescription struct {
	Summary string `xml:"summary,attr"`
	Text    string `xml:",chardata"`
}

type rawInterface struct {
	Name        string          `xml:"name,attr"`
	Version     string          `xml:"version,attr"`
	Description *rawDescription `xml:"description"`
	Requests    []rawMessage    `xml:"request"`
	Events      []rawMessage    `xml:"event"`
	Enums       []rawEnum       `xml:"enum"`
}

type rawMessage struct {
	Name            string          `xml:"name,attr"`
	Type            string          `xml:"type,attr"`
	Since           string          `xml:"since,attr"`
	DeprecatedSince string          `xml:"deprecated-since,attr"`
	Description     *rawDescription `xml:"description"`
	Args            []rawArg        `xml:"arg"`
}

type rawArg struct {
	Name        string          `xml:"name,attr"`
	Type        string          `xml:"type,attr"`
	Summary     string          `xml:"summary,attr"`
	Interface   string          `xml:"interface,attr"`
	AllowNull   string          `xml:"allow-null,attr"`
	Enum        string          `xml:"enum,attr"`
	Description *rawDescription `xml:"description"`
}

type rawEnum struct {
	Name        string          `xml:"name,attr"`
	Since       string          `xml:"since,attr"`
	Bitfield    string          `xml:"bitfield,attr"`
	Description *rawDescription `xml:"description"`
	Entries     []rawEntry      `xml:"entry"`
}

type rawEntry struct {
	Name            string          `xml:"name,attr"`
	Value           string          `xml:"value,attr"`
	Summary         string          `xml:"summary,attr"`
	Since           string          `xml:"since,attr"`
	DeprecatedSince string          `xml:"deprecated-since,attr"`
	Description     *rawDescription `xml:"description"`
}

// ParseDocument parses and normalizes one document. Symbolic references
// are left unresolved; Compile resolves them across all documents.
func ParseDocument(doc Document) (*Protocol, error) {
	var raw rawProtocol
	if err := xml.Unmarshal(doc.Data, &raw); err != nil {
		return nil, compileErr(doc.Path, fmt.Errorf("%w: %v", ErrInvalidDocument, err))
	}
	p, err := raw.protocol(doc.Path)
	if err != nil {
		return nil, compileErr(doc.Path, err)
	}
	log.Debug().Msgf("schema.ParseDocument path=%q protocol=%s interfaces=%d", doc.Path, p.Name, len(p.Interfaces))
	return p, nil
}

func (r *rawProtocol) protocol(path string) (*Protocol, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: protocol name", ErrMissingAttribute)
	}
	p := &Protocol{
		Name:        name,
		Path:        path,
		Description: r.Description.description(),
		Interfaces:  make([]*Interface, 0, len(r.Interfaces)),
	}
	if r.Copyright != nil {
		p.Copyright = strings.TrimSpace(r.Copyright.Text)
	}
	for i := range r.Interfaces {
		iface, err := r.Interfaces[i].iface(name)
		if err != nil {
			return nil, err
		}
		p.Interfaces = append(p.Interfaces, iface)
	}
	return p, nil
}

func (r *rawInterface) iface(protocol string) (*Interface, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("%w: interface name", ErrMissingAttribute)
	}
	if strings.TrimSpace(r.Version) == "" {
		return nil, fmt.Errorf("%w: interface %s version", ErrMissingAttribute, r.Name)
	}
	version, err := parseSince("version", r.Version, 1)
	if err != nil {
		return nil, fmt.Errorf("interface %s: %w", r.Name, err)
	}
	name := normalizeInterfaceName(protocol, r.Name)
	iface := &Interface{
		Name:        name,
		WireName:    r.Name,
		TypeName:    TypeName(name),
		Version:     version,
		Description: r.Description.description(),
	}
	if iface.Requests, err = messages(r.Requests, DirRequest); err != nil {
		return nil, fmt.Errorf("interface %s: %w", r.Name, err)
	}
	if iface.Events, err = messages(r.Events, DirEvent); err != nil {
		return nil, fmt.Errorf("interface %s: %w", r.Name, err)
	}
	iface.Enums = make([]*Enum, 0, len(r.Enums))
	for i := range r.Enums {
		e, err := r.Enums[i].enum()
		if err != nil {
			return nil, fmt.Errorf("interface %s: %w", r.Name, err)
		}
		iface.Enums = append(iface.Enums, e)
	}
	return iface, nil
}

// messages keeps declaration order: the index is the opcode.
func messages(raw []rawMessage, dir Direction) ([]*Message, error) {
	out := make([]*Message, 0, len(raw))
	for i := range raw {
		m, err := raw[i].message(dir, uint16(i))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *rawMessage) message(dir Direction, opcode uint16) (*Message, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("%w: %s name (opcode %d)", ErrMissingAttribute, dir, opcode)
	}
	var kind MessageKind
	switch r.Type {
	case "":
	case "destructor":
		kind = KindDestructor
	default:
		return nil, fmt.Errorf("%w: %s %s: type=%q", ErrInvalidDocument, dir, r.Name, r.Type)
	}
	since, err := parseSince("since", r.Since, 1)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", dir, r.Name, err)
	}
	deprecated, err := parseDeprecated(r.DeprecatedSince)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", dir, r.Name, err)
	}
	m := &Message{
		Name:            r.Name,
		TypeName:        TypeName(r.Name),
		Direction:       dir,
		Kind:            kind,
		Since:           since,
		DeprecatedSince: deprecated,
		Opcode:          opcode,
		Description:     r.Description.description(),
		Args:            make([]Arg, 0, len(r.Args)),
	}
	for i := range r.Args {
		arg, err := r.Args[i].arg()
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", dir, r.Name, err)
		}
		m.Args = append(m.Args, arg)
	}
	return m, nil
}

func (r *rawArg) arg() (Arg, error) {
	if r.Name == "" {
		return Arg{}, fmt.Errorf("%w: arg name", ErrMissingAttribute)
	}
	if r.Type == "" {
		return Arg{}, fmt.Errorf("%w: arg %s type", ErrMissingAttribute, r.Name)
	}
	typ, err := classifyArg(r.Type, r.Interface, r.Enum)
	if err != nil {
		return Arg{}, fmt.Errorf("arg %s: %w", r.Name, err)
	}
	return Arg{
		Name:        r.Name,
		Type:        typ,
		Summary:     r.Summary,
		Nullable:    strings.EqualFold(strings.TrimSpace(r.AllowNull), "true"),
		Description: r.Description.description(),
	}, nil
}

func (r *rawEnum) enum() (*Enum, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("%w: enum name", ErrMissingAttribute)
	}
	since, err := parseSince("since", r.Since, 1)
	if err != nil {
		return nil, fmt.Errorf("enum %s: %w", r.Name, err)
	}
	var bitfield bool
	switch strings.TrimSpace(r.Bitfield) {
	case "", "false":
	case "true":
		bitfield = true
	default:
		return nil, fmt.Errorf("%w: enum %s: bitfield=%q", ErrInvalidDocument, r.Name, r.Bitfield)
	}
	e := &Enum{
		Name:        r.Name,
		TypeName:    TypeName(r.Name),
		Since:       since,
		Bitfield:    bitfield,
		Description: r.Description.description(),
		Entries:     make([]Entry, 0, len(r.Entries)),
	}
	for i := range r.Entries {
		entry, err := r.Entries[i].entry()
		if err != nil {
			return nil, fmt.Errorf("enum %s: %w", r.Name, err)
		}
		e.Entries = append(e.Entries, entry)
	}
	return e, nil
}

func (r *rawEntry) entry() (Entry, error) {
	if r.Name == "" {
		return Entry{}, fmt.Errorf("%w: entry name", ErrMissingAttribute)
	}
	if r.Value == "" {
		return Entry{}, fmt.Errorf("%w: entry %s value", ErrMissingAttribute, r.Name)
	}
	value, err := parseValue(r.Value)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", r.Name, err)
	}
	since, err := parseSince("since", r.Since, 1)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", r.Name, err)
	}
	deprecated, err := parseDeprecated(r.DeprecatedSince)
	if err != nil {
		return Entry{}, fmt.Errorf("entry %s: %w", r.Name, err)
	}
	return Entry{
		Name:            r.Name,
		TypeName:        TypeName(r.Name),
		Value:           value,
		Summary:         r.Summary,
		Since:           since,
		DeprecatedSince: deprecated,
		Description:     r.Description.description(),
	}, nil
}

func (r *rawDescription) description() *Description {
	if r == nil {
		return nil
	}
	return &Description{
		Summary: r.Summary,
		Content: strings.TrimSpace(r.Text),
	}
}
