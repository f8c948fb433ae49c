package receipt

// SystemPrompt fixes the amount notation the model should use
const SystemPrompt = `あなたはレシートから情報を正確に読み取るアシスタントです。
金額の表記は必ず「数字+円」の形式で行ってください。
例：820円、495円、460円、950円`

// ExtractionPrompt asks for the four receipt fields as a bare JSON object
const ExtractionPrompt = `このレシートから以下の情報を抽出してください：
1. 登録番号（登録番号もしくは事業者登録番号）
2. 購入店名
3. 総支払額
4. 消費税額

必ず次のJSON形式でのみ返答してください。余計な説明は含めないでください：
{
    "登録番号": "番号",
    "購入店": "店名",
    "総支払額": "金額",
    "消費税額": "金額"
}

情報が見つからない場合は、該当項目を「不明」としてください。`

// TextPrompt asks for the same fields from OCR text instead of an image
func TextPrompt(text string) string {
	return ExtractionPrompt + "\n\nOCRのテキスト結果:\n" + text
}
