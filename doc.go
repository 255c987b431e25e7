// Package podgen は投稿されたコンテンツからポッドキャストエピソードを
// 生成・配信するサービス。エントリーポイントは cmd/podgen を参照。
package podgen
