package application

import "errors"

// ErrValidation はコマンド入力の検証失敗を表す
var ErrValidation = errors.New("入力が不正です")
