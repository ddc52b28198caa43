package domain

type ConnectionState string

const (
	ConnectionConnected    ConnectionState = "connected"
	ConnectionReconnecting ConnectionState = "reconnecting"
	ConnectionDisconnected ConnectionState = "disconnected"
)

type Member struct {
	Id          string `json:"id"`
	DisplayName string `json:"display_name"`
	JoinedAtSeq uint64 `json:"joined_at_seq"`
}

type Participant struct {
	Id              string          `json:"id"`
	DisplayName     string          `json:"display_name"`
	ConnectionState ConnectionState `json:"connection_state"`
	JoinedAtSeq     uint64          `json:"joined_at_seq"`
	IsHost          bool            `json:"is_host"`
}
