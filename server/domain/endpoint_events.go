package domain

type endpointEventKind uint8

const (
	// unknown
	unknown endpointEventKind = iota

	// I/O
	evPong       // pong を受信した
	evReadError  // 読み込み失敗
	evWriteError // 書き込み失敗

	// ctrl
	evIdle  // 無通信のまま IdleTimeout を超えた
	evClose // セッション終了
)

// endpointEvent は ownerLoop に渡すイベントです。err は evReadError / evWriteError のときの原因です。
type endpointEvent struct {
	kind   endpointEventKind
	err    error
	reason IdleReason
}
