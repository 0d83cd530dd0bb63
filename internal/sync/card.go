// Package sync implements the sync protocol engine (§4.5): the card
// codec, the client-side state machine, phantom/unresolved-set
// tracking, and stalled-round detection. internal/transfer carries
// the encoded card stream over HTTP; this package never imports
// net/http.
package sync

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/fossilgo/fossilgo/internal/errs"
)

// Kind identifies a card's type, one value per row of §4.5's card table.
type Kind string

const (
	KindPragma  Kind = "pragma"
	KindLogin   Kind = "login"
	KindClone   Kind = "clone"
	KindIgot    Kind = "igot"
	KindGimme   Kind = "gimme"
	KindFile    Kind = "file"
	KindCluster Kind = "cluster"
	KindUVFile  Kind = "uvfile"
	KindCookie  Kind = "cookie"
	KindMessage Kind = "message"
	KindError   Kind = "error"
)

// Card is a single protocol card. Following the same "struct of
// optional fields, no switch-dispatch on a hierarchy of types" shape
// internal/manifest uses for its card set, every card kind's fields
// live side by side here; Kind says which are populated.
type Card struct {
	Kind Kind

	// pragma
	Name  string
	Value string

	// login
	User      string
	Nonce     string
	Signature string

	// clone
	Version string

	// igot / gimme / cluster / file / uvfile
	UUID string

	// igot
	Private bool

	// file / uvfile
	Size  int64
	Bytes []byte

	// file (delta form)
	IsDelta bool
	SrcUUID string

	// uvfile
	FileName string
	Mtime    string
	Hash     string
	Flags    string

	// cookie
	Token string

	// message / error
	Text string
}

// Pragma builds a `pragma NAME ?VALUE?` card.
func Pragma(name, value string) Card { return Card{Kind: KindPragma, Name: name, Value: value} }

// Login builds a `login USER NONCE SIGNATURE` card.
func Login(user, nonce, signature string) Card {
	return Card{Kind: KindLogin, User: user, Nonce: nonce, Signature: signature}
}

// Igot builds an `igot UUID ?PRIVATE?` card.
func Igot(uuid string, private bool) Card { return Card{Kind: KindIgot, UUID: uuid, Private: private} }

// Gimme builds a `gimme UUID` card.
func Gimme(uuid string) Card { return Card{Kind: KindGimme, UUID: uuid} }

// File builds a `file UUID SIZE` card carrying a full artifact.
func File(uuid string, content []byte) Card {
	return Card{Kind: KindFile, UUID: uuid, Size: int64(len(content)), Bytes: content}
}

// FileDelta builds a `file UUID DELTA SRC SIZE` card carrying a
// delta-encoded artifact.
func FileDelta(uuid, srcUUID string, delta []byte) Card {
	return Card{Kind: KindFile, UUID: uuid, IsDelta: true, SrcUUID: srcUUID, Size: int64(len(delta)), Bytes: delta}
}

// Cluster builds a `cluster UUID` card.
func Cluster(uuid string) Card { return Card{Kind: KindCluster, UUID: uuid} }

// Cookie builds a `cookie STRING` card.
func Cookie(token string) Card { return Card{Kind: KindCookie, Token: token} }

// Message builds a `message TEXT` card.
func Message(text string) Card { return Card{Kind: KindMessage, Text: text} }

// Err builds an `error TEXT` card.
func Err(text string) Card { return Card{Kind: KindError, Text: text} }

// Encode renders cards as a newline-terminated card stream, the
// payload format carried verbatim inside an HTTP POST body by
// internal/transfer.
func Encode(cards []Card) []byte {
	var buf bytes.Buffer
	for _, c := range cards {
		switch c.Kind {
		case KindPragma:
			if c.Value == "" {
				fmt.Fprintf(&buf, "pragma %s\n", c.Name)
			} else {
				fmt.Fprintf(&buf, "pragma %s %s\n", c.Name, c.Value)
			}
		case KindLogin:
			fmt.Fprintf(&buf, "login %s %s %s\n", c.User, c.Nonce, c.Signature)
		case KindClone:
			if c.Version == "" {
				buf.WriteString("clone\n")
			} else {
				fmt.Fprintf(&buf, "clone %s\n", c.Version)
			}
		case KindIgot:
			if c.Private {
				fmt.Fprintf(&buf, "igot %s 1\n", c.UUID)
			} else {
				fmt.Fprintf(&buf, "igot %s\n", c.UUID)
			}
		case KindGimme:
			fmt.Fprintf(&buf, "gimme %s\n", c.UUID)
		case KindFile:
			if c.IsDelta {
				fmt.Fprintf(&buf, "file %s delta %s %d\n", c.UUID, c.SrcUUID, c.Size)
			} else {
				fmt.Fprintf(&buf, "file %s %d\n", c.UUID, c.Size)
			}
			buf.Write(c.Bytes)
			buf.WriteByte('\n')
		case KindCluster:
			fmt.Fprintf(&buf, "cluster %s\n", c.UUID)
		case KindUVFile:
			fmt.Fprintf(&buf, "uvfile %s %s %d %s %s\n", c.FileName, c.Mtime, c.Size, c.Hash, c.Flags)
			buf.Write(c.Bytes)
			buf.WriteByte('\n')
		case KindCookie:
			fmt.Fprintf(&buf, "cookie %s\n", c.Token)
		case KindMessage:
			fmt.Fprintf(&buf, "message %s\n", quoteField(c.Text))
		case KindError:
			fmt.Fprintf(&buf, "error %s\n", quoteField(c.Text))
		}
	}
	return buf.Bytes()
}

// Decode parses a card stream produced by Encode (or a peer
// implementation following the same grammar).
func Decode(data []byte) ([]Card, error) {
	var cards []Card
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	lineNo := 0
	readLine := func() (string, bool) {
		if !scanner.Scan() {
			return "", false
		}
		lineNo++
		return scanner.Text(), true
	}

	for {
		line, ok := readLine()
		if !ok {
			break
		}
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		verb := fields[0]
		args := fields[1:]

		switch verb {
		case "pragma":
			if len(args) == 0 {
				return nil, protocolErr(lineNo, "pragma")
			}
			c := Card{Kind: KindPragma, Name: args[0]}
			if len(args) > 1 {
				c.Value = args[1]
			}
			cards = append(cards, c)
		case "login":
			if len(args) != 3 {
				return nil, protocolErr(lineNo, "login")
			}
			cards = append(cards, Card{Kind: KindLogin, User: args[0], Nonce: args[1], Signature: args[2]})
		case "clone":
			c := Card{Kind: KindClone}
			if len(args) > 0 {
				c.Version = args[0]
			}
			cards = append(cards, c)
		case "igot":
			if len(args) == 0 {
				return nil, protocolErr(lineNo, "igot")
			}
			cards = append(cards, Card{Kind: KindIgot, UUID: args[0], Private: len(args) > 1 && args[1] == "1"})
		case "gimme":
			if len(args) != 1 {
				return nil, protocolErr(lineNo, "gimme")
			}
			cards = append(cards, Card{Kind: KindGimme, UUID: args[0]})
		case "cluster":
			if len(args) != 1 {
				return nil, protocolErr(lineNo, "cluster")
			}
			cards = append(cards, Card{Kind: KindCluster, UUID: args[0]})
		case "cookie":
			cards = append(cards, Card{Kind: KindCookie, Token: strings.TrimPrefix(line, "cookie ")})
		case "message":
			cards = append(cards, Card{Kind: KindMessage, Text: unquoteField(strings.TrimPrefix(line, "message "))})
		case "error":
			cards = append(cards, Card{Kind: KindError, Text: unquoteField(strings.TrimPrefix(line, "error "))})
		case "file":
			size, delta, srcUUID, uuid, err := parseFileHeader(args)
			if err != nil {
				return nil, protocolErr(lineNo, "file: "+err.Error())
			}
			body, ok := readExact(scanner, size)
			if !ok {
				return nil, protocolErr(lineNo, "file: short body")
			}
			cards = append(cards, Card{Kind: KindFile, UUID: uuid, IsDelta: delta, SrcUUID: srcUUID, Size: size, Bytes: body})
		case "uvfile":
			if len(args) != 5 {
				return nil, protocolErr(lineNo, "uvfile")
			}
			size, err := strconv.ParseInt(args[2], 10, 64)
			if err != nil {
				return nil, protocolErr(lineNo, "uvfile: bad size")
			}
			body, ok := readExact(scanner, size)
			if !ok {
				return nil, protocolErr(lineNo, "uvfile: short body")
			}
			cards = append(cards, Card{Kind: KindUVFile, FileName: args[0], Mtime: args[1], Size: size,
				Hash: args[3], Flags: args[4], Bytes: body})
		default:
			return nil, protocolErr(lineNo, "unknown card "+verb)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errs.Wrap(err, errs.CategoryProtocol, "scan card stream")
	}
	return cards, nil
}

func parseFileHeader(args []string) (size int64, isDelta bool, srcUUID, uuid string, err error) {
	if len(args) < 2 {
		return 0, false, "", "", fmt.Errorf("too few fields")
	}
	uuid = args[0]
	if strings.EqualFold(args[1], "delta") {
		if len(args) != 4 {
			return 0, false, "", "", fmt.Errorf("delta form wants 4 fields")
		}
		srcUUID = args[2]
		size, err = strconv.ParseInt(args[3], 10, 64)
		return size, true, srcUUID, uuid, err
	}
	if len(args) != 2 {
		return 0, false, "", "", fmt.Errorf("full form wants 2 fields")
	}
	size, err = strconv.ParseInt(args[1], 10, 64)
	return size, false, "", uuid, err
}

// readExact consumes the size-byte body following a file/uvfile header
// line. The scanner splits on line breaks, so the body is read line by
// line and rejoined with '\n' until size bytes are collected; the line
// break Encode writes after the body ends the last line read.
func readExact(scanner *bufio.Scanner, size int64) ([]byte, bool) {
	if size == 0 {
		return nil, true
	}
	var out []byte
	for i := 0; int64(len(out)) < size; i++ {
		if !scanner.Scan() {
			return nil, false
		}
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, scanner.Bytes()...)
	}
	if int64(len(out)) != size {
		return nil, false
	}
	return out, true
}

func quoteField(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, " ", `\s`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func unquoteField(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case 's':
				b.WriteByte(' ')
				i++
				continue
			case 'n':
				b.WriteByte('\n')
				i++
				continue
			case '\\':
				b.WriteByte('\\')
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func protocolErr(line int, reason string) error {
	return errs.New(errs.CategoryProtocol, fmt.Sprintf("line %d: %s", line, reason)).WithField("line", line)
}
