// Package checkpoint provides shared helpers for navigating the
// semi-structured checkpoint shape (spec §3): an ordered mapping from
// channel name to channel value, where some channel values carry an
// ordered "messages" sequence.
package checkpoint

import "github.com/rcliao/checkpoint-splitter/internal/jsonval"

// MessageChannel is a channel value recognized as message-bearing: an
// object containing a non-nil "messages" array.
type MessageChannel struct {
	Name     string
	Object   *jsonval.Object
	Messages []any
}

// MessageChannels returns every message-bearing channel in cp, in the
// checkpoint's own channel insertion order.
func MessageChannels(cp *jsonval.Object) []MessageChannel {
	if cp == nil {
		return nil
	}
	var out []MessageChannel
	for _, name := range cp.Keys() {
		val, _ := cp.Get(name)
		obj, ok := val.(*jsonval.Object)
		if !ok {
			continue
		}
		msgsVal, ok := obj.Get("messages")
		if !ok {
			continue
		}
		msgs, ok := msgsVal.([]any)
		if !ok {
			continue
		}
		out = append(out, MessageChannel{Name: name, Object: obj, Messages: msgs})
	}
	return out
}

// SetMessages replaces a channel's "messages" array in place.
func SetMessages(obj *jsonval.Object, messages []any) {
	obj.Set("messages", messages)
}

// ChannelVersion returns a channel's "version" field if present, as a
// string (best-effort — used only as informational metadata on
// message-split shards).
func ChannelVersion(obj *jsonval.Object) string {
	v, ok := obj.Get("version")
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
