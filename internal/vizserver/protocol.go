package vizserver

import "encoding/binary"

// JSON operations exchanged as text messages. The server greets with
// serverInfo and advertise; clients manage subscriptions.
const (
	opServerInfo  = "serverInfo"
	opAdvertise   = "advertise"
	opSubscribe   = "subscribe"
	opUnsubscribe = "unsubscribe"
)

// binaryMessageData is the opcode of a binary data frame:
// opcode (1) | subscription id (4, LE) | receive time ns (8, LE) | payload.
const binaryMessageData = 0x01

const binaryHeaderLen = 1 + 4 + 8

type serverInfoMsg struct {
	Op           string   `json:"op"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
}

type channelInfo struct {
	ID             uint32 `json:"id"`
	Topic          string `json:"topic"`
	Encoding       string `json:"encoding"`
	SchemaName     string `json:"schemaName"`
	Schema         string `json:"schema"`
	SchemaEncoding string `json:"schemaEncoding"`
}

type advertiseMsg struct {
	Op       string        `json:"op"`
	Channels []channelInfo `json:"channels"`
}

type clientOp struct {
	Op              string         `json:"op"`
	Subscriptions   []subscription `json:"subscriptions,omitempty"`
	SubscriptionIDs []uint32       `json:"subscriptionIds,omitempty"`
}

type subscription struct {
	ID        uint32 `json:"id"`
	ChannelID uint32 `json:"channelId"`
}

// packDataFrame builds one binary data frame for a subscription.
func packDataFrame(subID uint32, receiveTimeNanos uint64, payload []byte) []byte {
	buf := make([]byte, binaryHeaderLen+len(payload))
	buf[0] = binaryMessageData
	binary.LittleEndian.PutUint32(buf[1:5], subID)
	binary.LittleEndian.PutUint64(buf[5:13], receiveTimeNanos)
	copy(buf[binaryHeaderLen:], payload)
	return buf
}
