package idempotency

import "errors"

// Idempotency ドメインのエラー定義
var (
	ErrRecordNotFound = errors.New("冪等性レコードが見つかりません")
	// ErrDuplicateKey は同じ (CommandType, Key) のレコードが既に存在する場合に返る
	// 先勝ちの競合に敗れた側はこのエラーを受けて勝者の結果を読み直す
	ErrDuplicateKey = errors.New("同じ冪等性キーのレコードが既に存在します")
)
