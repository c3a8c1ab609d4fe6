package transaction

import "context"

// Tx は進行中のトランザクション
// 予約コマンドは座席の確保から冪等性レコードの挿入までを1つの Tx で行い、
// 途中で失敗した場合はロールバックで座席・仮押さえ・予約行を全て巻き戻す
type Tx interface {
	Commit() error
	Rollback() error
}

// Manager はトランザクションの開始点
// ドメイン層と application 層が sqlx など具体的なドライバーに
// 依存しないための抽象化
type Manager interface {
	Begin(ctx context.Context) (Tx, error)
}
