package netplay

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"boardrush/game/domain"
	"boardrush/game/turn"
)

// バイトオーダー: リトルエンディアン
var byteOrder = binary.LittleEndian

const (
	ProtocolVersion   = 1
	HeaderSize        = 31
	PayloadHeaderSize = 2
	JoinPayloadSize   = 16
	idSize            = 16
)

// Header はメッセージヘッダー (31バイト)
//
//	version    u8       (1)
//	senderID   [16]byte (16)
//	seq        u32      (4)  - 送信者ごとのシーケンス。0 はゲート対象外
//	turn       u32      (4)  - 送信時のターン番号
//	length     u16      (2)  - ペイロード長
//	timestamp  u32      (4)
type Header struct {
	Version   uint8
	SenderID  [16]byte
	Seq       uint32
	Turn      uint32
	Length    uint16
	Timestamp uint32
}

// DataType はメッセージの種別
type DataType uint8

const (
	DataTypeAction  DataType = 1
	DataTypeControl DataType = 2
)

// ControlSubType はcontrolメッセージのサブタイプ
type ControlSubType uint8

const (
	ControlSubTypeJoin              ControlSubType = 1
	ControlSubTypeLeave             ControlSubType = 2
	ControlSubTypePing              ControlSubType = 3
	ControlSubTypePong              ControlSubType = 4
	ControlSubTypeError             ControlSubType = 5
	ControlSubTypeAssign            ControlSubType = 6
	ControlSubTypeCheckpointRequest ControlSubType = 7
	ControlSubTypeStart             ControlSubType = 8
)

// PayloadHeader はペイロードヘッダー (2バイト)
//
//	datatype  u8 (1)
//	subtype   u8 (1)  - action なら turn.Kind
type PayloadHeader struct {
	DataType DataType
	SubType  uint8
}

var (
	ErrInvalidHeaderSize  = errors.New("invalid header size")
	ErrInvalidPayloadSize = errors.New("invalid payload size")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
	ErrInvalidActionBody  = errors.New("invalid action body")
	ErrUnknownKind        = errors.New("unknown action kind")
	ErrNotAnAction        = errors.New("frame is not an action")
	ErrInvalidRoster      = errors.New("invalid roster payload")
)

// ParseHeader はバイト列からHeaderをパースする
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, ErrInvalidHeaderSize
	}

	var senderID [16]byte
	copy(senderID[:], data[1:17])

	return &Header{
		Version:   data[0],
		SenderID:  senderID,
		Seq:       byteOrder.Uint32(data[17:21]),
		Turn:      byteOrder.Uint32(data[21:25]),
		Length:    byteOrder.Uint16(data[25:27]),
		Timestamp: byteOrder.Uint32(data[27:31]),
	}, nil
}

// Encode はHeaderをバイト列にエンコードする
func (h *Header) Encode() []byte {
	data := make([]byte, HeaderSize)
	data[0] = h.Version
	copy(data[1:17], h.SenderID[:])
	byteOrder.PutUint32(data[17:21], h.Seq)
	byteOrder.PutUint32(data[21:25], h.Turn)
	byteOrder.PutUint16(data[25:27], h.Length)
	byteOrder.PutUint32(data[27:31], h.Timestamp)
	return data
}

// ParsePayloadHeader はバイト列からPayloadHeaderをパースする
func ParsePayloadHeader(data []byte) (*PayloadHeader, error) {
	if len(data) < PayloadHeaderSize {
		return nil, ErrInvalidPayloadSize
	}

	return &PayloadHeader{
		DataType: DataType(data[0]),
		SubType:  data[1],
	}, nil
}

// Encode はPayloadHeaderをバイト列にエンコードする
func (p *PayloadHeader) Encode() []byte {
	return []byte{byte(p.DataType), p.SubType}
}

// Frame はヘッダー・ペイロードヘッダー・本体をまとめた1メッセージです。
type Frame struct {
	Header  Header
	Payload PayloadHeader
	Body    []byte
}

func timestamp() uint32 {
	return uint32(time.Now().UnixMilli() & 0xFFFFFFFF)
}

func newFrame(sender domain.PlayerID, seq, turnNumber uint32, dataType DataType, subType uint8, body []byte) *Frame {
	return &Frame{
		Header: Header{
			Version:   ProtocolVersion,
			SenderID:  sender,
			Seq:       seq,
			Turn:      turnNumber,
			Length:    uint16(PayloadHeaderSize + len(body)),
			Timestamp: timestamp(),
		},
		Payload: PayloadHeader{DataType: dataType, SubType: subType},
		Body:    body,
	}
}

// ParseFrame はバイト列から Frame をパースする。Body は data の部分スライスです。
func ParseFrame(data []byte) (*Frame, error) {
	header, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}
	if header.Version != ProtocolVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}
	rest := data[HeaderSize:]
	if int(header.Length) != len(rest) {
		return nil, fmt.Errorf("%w: header says %d, got %d", ErrInvalidPayloadSize, header.Length, len(rest))
	}
	payload, err := ParsePayloadHeader(rest)
	if err != nil {
		return nil, err
	}
	return &Frame{Header: *header, Payload: *payload, Body: rest[PayloadHeaderSize:]}, nil
}

// Encode はFrameをバイト列にエンコードする
func (f *Frame) Encode() []byte {
	f.Header.Length = uint16(PayloadHeaderSize + len(f.Body))
	data := make([]byte, 0, HeaderSize+int(f.Header.Length))
	data = append(data, f.Header.Encode()...)
	data = append(data, f.Payload.Encode()...)
	return append(data, f.Body...)
}

func (f *Frame) Sender() domain.PlayerID {
	return domain.PlayerID(f.Header.SenderID)
}

func (f *Frame) IsControl(sub ControlSubType) bool {
	return f.Payload.DataType == DataTypeControl && ControlSubType(f.Payload.SubType) == sub
}

// EncodeAction はアクションを1フレームにエンコードする
func EncodeAction(a turn.Action) ([]byte, error) {
	body, err := encodeActionBody(a.Payload)
	if err != nil {
		return nil, err
	}
	return newFrame(a.SenderID, a.Sequence, a.TurnNumber, DataTypeAction, uint8(a.Kind()), body).Encode(), nil
}

// DecodeAction はフレームからアクションを取り出す
func DecodeAction(f *Frame) (turn.Action, error) {
	if f.Payload.DataType != DataTypeAction {
		return turn.Action{}, ErrNotAnAction
	}
	payload, err := decodeActionBody(turn.Kind(f.Payload.SubType), f.Body)
	if err != nil {
		return turn.Action{}, err
	}
	return turn.Action{
		Sequence:   f.Header.Seq,
		SenderID:   f.Sender(),
		TurnNumber: f.Header.Turn,
		Payload:    payload,
	}, nil
}

// アクション本体
//
//	RollDice      value u8
//	MovePawn      pawnID u8
//	ResolveEvent  choice u8, n u8, answers [n]u8
//	AdvanceTurn   flags u8 (bit0 timeout)
//	Checkpoint    チェックポイント本体
//	Forfeit       playerID [16]
//	Presence      playerID [16], connected u8
func encodeActionBody(p turn.Payload) ([]byte, error) {
	switch v := p.(type) {
	case turn.RollDice:
		return []byte{v.Value}, nil
	case turn.MovePawn:
		return []byte{v.PawnID}, nil
	case turn.ResolveEvent:
		if len(v.Answers) > 255 {
			return nil, fmt.Errorf("%w: %d answers", ErrInvalidActionBody, len(v.Answers))
		}
		body := []byte{v.Choice, byte(len(v.Answers))}
		return append(body, v.Answers...), nil
	case turn.AdvanceTurn:
		var flags byte
		if v.Timeout {
			flags |= 1
		}
		return []byte{flags}, nil
	case turn.Checkpoint:
		return v.Data, nil
	case turn.Forfeit:
		return v.PlayerID.Bytes(), nil
	case turn.Presence:
		body := append([]byte{}, v.PlayerID.Bytes()...)
		if v.Connected {
			return append(body, 1), nil
		}
		return append(body, 0), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, p)
	}
}

func decodeActionBody(kind turn.Kind, body []byte) (turn.Payload, error) {
	need := func(n int) error {
		if len(body) < n {
			return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidActionBody, kind, n, len(body))
		}
		return nil
	}
	switch kind {
	case turn.KindRollDice:
		if err := need(1); err != nil {
			return nil, err
		}
		return turn.RollDice{Value: body[0]}, nil
	case turn.KindMovePawn:
		if err := need(1); err != nil {
			return nil, err
		}
		return turn.MovePawn{PawnID: body[0]}, nil
	case turn.KindResolveEvent:
		if err := need(2); err != nil {
			return nil, err
		}
		n := int(body[1])
		if err := need(2 + n); err != nil {
			return nil, err
		}
		var answers []uint8
		if n > 0 {
			answers = append([]uint8(nil), body[2:2+n]...)
		}
		return turn.ResolveEvent{Choice: body[0], Answers: answers}, nil
	case turn.KindAdvanceTurn:
		if err := need(1); err != nil {
			return nil, err
		}
		return turn.AdvanceTurn{Timeout: body[0]&1 != 0}, nil
	case turn.KindCheckpoint:
		return turn.Checkpoint{Data: append([]byte(nil), body...)}, nil
	case turn.KindForfeit:
		if err := need(idSize); err != nil {
			return nil, err
		}
		return turn.Forfeit{PlayerID: domain.PlayerID(body[:idSize])}, nil
	case turn.KindPresence:
		if err := need(idSize + 1); err != nil {
			return nil, err
		}
		return turn.Presence{PlayerID: domain.PlayerID(body[:idSize]), Connected: body[idSize] != 0}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
	}
}

// EncodeControl はcontrolメッセージをエンコードする
func EncodeControl(sender domain.PlayerID, sub ControlSubType, body []byte) []byte {
	return newFrame(sender, 0, 0, DataTypeControl, uint8(sub), body).Encode()
}

// EncodePingMessage はクライアントに死活確認のpingを送信するために使用
func EncodePingMessage(sender domain.PlayerID) []byte {
	return EncodeControl(sender, ControlSubTypePing, nil)
}

func EncodePongMessage(sender domain.PlayerID) []byte {
	return EncodeControl(sender, ControlSubTypePong, nil)
}

// EncodeAssignMessage はクライアントに自分のプレイヤーIDを通知するために使用
func EncodeAssignMessage(player domain.PlayerID) []byte {
	return EncodeControl(player, ControlSubTypeAssign, nil)
}

// EncodeLeaveMessage は異常切断時にルーム離脱を通知するために使用
func EncodeLeaveMessage(player domain.PlayerID) []byte {
	return EncodeControl(player, ControlSubTypeLeave, nil)
}

// EncodeCheckpointRequest はシーケンスの欠落を検知したピアが送ります。
func EncodeCheckpointRequest(sender domain.PlayerID) []byte {
	return EncodeControl(sender, ControlSubTypeCheckpointRequest, nil)
}

// ErrorCode は Error control メッセージの理由です。
type ErrorCode uint8

const (
	ErrorCodeBadFrame     ErrorCode = 1
	ErrorCodeUnauthorized ErrorCode = 2
	ErrorCodeRejected     ErrorCode = 3
	ErrorCodeNotStarted   ErrorCode = 4
)

// EncodeErrorMessage
//
//	code    u8
//	message 残り全部 (UTF-8)
func EncodeErrorMessage(sender domain.PlayerID, code ErrorCode, message string) []byte {
	body := append([]byte{byte(code)}, message...)
	return EncodeControl(sender, ControlSubTypeError, body)
}

func ParseErrorMessage(body []byte) (ErrorCode, string, error) {
	if len(body) < 1 {
		return 0, "", ErrInvalidPayloadSize
	}
	return ErrorCode(body[0]), string(body[1:]), nil
}

// JoinPayload はルーム参加メッセージのペイロード (16バイト)
//
//	roomID  [16]byte  - ルームID (UUID)
type JoinPayload struct {
	RoomID [16]byte
}

var ErrInvalidJoinPayloadSize = errors.New("invalid join payload size")

// ParseJoinPayload はバイト列からJoinPayloadをパースする
func ParseJoinPayload(data []byte) (*JoinPayload, error) {
	if len(data) < JoinPayloadSize {
		return nil, ErrInvalidJoinPayloadSize
	}
	var roomID [16]byte
	copy(roomID[:], data[:JoinPayloadSize])
	return &JoinPayload{RoomID: roomID}, nil
}

// Encode はJoinPayloadをバイト列にエンコードする
func (j *JoinPayload) Encode() []byte {
	return j.RoomID[:]
}

// StartPayload は試合開始（と再接続時の再同期）で送る名簿です。
//
//	authorityID [16]
//	count       u8
//	players     count * (id [16], color u8, flags u8, nameLen u8, name, startupLen u8, startup)
type StartPayload struct {
	AuthorityID domain.PlayerID
	Roster      []domain.Player
}

const flagAI = 1

func (s *StartPayload) Encode() []byte {
	data := append([]byte{}, s.AuthorityID.Bytes()...)
	data = append(data, byte(len(s.Roster)))
	for _, p := range s.Roster {
		data = append(data, p.ID.Bytes()...)
		var flags byte
		if p.IsAI {
			flags |= flagAI
		}
		data = append(data, byte(p.Color), flags)
		data = appendShortString(data, p.Name)
		data = appendShortString(data, p.StartupName)
	}
	return data
}

func appendShortString(data []byte, s string) []byte {
	// 255バイトに収まるよう、文字の途中で切らずに詰めます
	if len(s) > 255 {
		n := 255
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n]
	}
	data = append(data, byte(len(s)))
	return append(data, s...)
}

func ParseStartPayload(data []byte) (*StartPayload, error) {
	if len(data) < idSize+1 {
		return nil, ErrInvalidRoster
	}
	out := &StartPayload{AuthorityID: domain.PlayerID(data[:idSize])}
	count := int(data[idSize])
	off := idSize + 1
	readString := func() (string, error) {
		if off >= len(data) {
			return "", ErrInvalidRoster
		}
		n := int(data[off])
		off++
		if off+n > len(data) {
			return "", ErrInvalidRoster
		}
		s := string(data[off : off+n])
		off += n
		return s, nil
	}
	for range count {
		if off+idSize+2 > len(data) {
			return nil, ErrInvalidRoster
		}
		p := domain.Player{
			ID:    domain.PlayerID(data[off : off+idSize]),
			Color: domain.Color(data[off+idSize]),
			IsAI:  data[off+idSize+1]&flagAI != 0,
		}
		off += idSize + 2
		var err error
		if p.Name, err = readString(); err != nil {
			return nil, err
		}
		if p.StartupName, err = readString(); err != nil {
			return nil, err
		}
		out.Roster = append(out.Roster, p)
	}
	if err := domain.ValidateRoster(out.Roster); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoster, err)
	}
	return out, nil
}

func EncodeStartMessage(authority domain.PlayerID, roster []domain.Player) []byte {
	p := StartPayload{AuthorityID: authority, Roster: roster}
	return EncodeControl(authority, ControlSubTypeStart, p.Encode())
}
