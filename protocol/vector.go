package protocol

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/CharlotteKetzenberg/DistanceVectorRouting/state"
)

const (
	senderSep = "|"
	entrySep  = ","
	costSep   = ":"
)

// VectorUpdate is a distance vector advertised by a neighbour.
type VectorUpdate struct {
	Sender state.NodeId
	Vector state.Vector
}

// EncodeVector formats v as "<self>|<dest>:<cost>,..." with destinations in ascending order.
func EncodeVector(self state.NodeId, v state.Vector) []byte {
	sb := strings.Builder{}
	sb.WriteString(string(self))
	sb.WriteString(senderSep)
	for i, dest := range v.Sorted() {
		if i != 0 {
			sb.WriteString(entrySep)
		}
		sb.WriteString(string(dest))
		sb.WriteString(costSep)
		sb.WriteString(strconv.FormatUint(uint64(v[dest]), 10))
	}
	return []byte(sb.String())
}

// DecodeVector parses a vector message. It never fails loudly: a malformed message
// yields ok == false, and individual entries with an unusable cost are dropped.
func DecodeVector(data []byte) (VectorUpdate, bool) {
	if !utf8.Valid(data) {
		return VectorUpdate{}, false
	}
	msg := string(data)
	if strings.Count(msg, senderSep) != 1 {
		return VectorUpdate{}, false
	}
	sender, body, _ := strings.Cut(msg, senderSep)
	if sender == "" {
		return VectorUpdate{}, false
	}

	vec := make(state.Vector)
	if body == "" {
		return VectorUpdate{Sender: state.NodeId(sender), Vector: vec}, true
	}
	for _, field := range strings.Split(body, entrySep) {
		switch strings.Count(field, costSep) {
		case 0:
			continue
		case 1:
		default:
			return VectorUpdate{}, false
		}
		dest, costStr, _ := strings.Cut(field, costSep)
		cost, ok := parseCost(costStr)
		if !ok || dest == "" {
			continue
		}
		vec[state.NodeId(dest)] = cost
	}
	return VectorUpdate{Sender: state.NodeId(sender), Vector: vec}, true
}

// PeekSender returns the sender of a vector message without decoding it.
func PeekSender(data []byte) (state.NodeId, bool) {
	i := bytes.IndexByte(data, senderSep[0])
	if i <= 0 {
		return "", false
	}
	return state.NodeId(data[:i]), true
}

func parseCost(s string) (uint32, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 || v > int64(^uint32(0)) {
		return 0, false
	}
	return uint32(v), true
}
