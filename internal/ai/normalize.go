package ai

import "github.com/tidwall/gjson"

// NormalizeOutput приводит поле output провайдера (строка или массив) к списку строк.
// Строка превращается в список из одного элемента, массив остаётся как есть,
// нестроковые элементы сохраняются в сыром JSON, чтобы их можно было показать в предупреждении.
func NormalizeOutput(out gjson.Result) []string {
	if !out.Exists() || out.Type == gjson.Null {
		return nil
	}
	if out.IsArray() {
		items := out.Array()
		res := make([]string, 0, len(items))
		for _, it := range items {
			res = append(res, entryString(it))
		}
		return res
	}
	return []string{entryString(out)}
}

func entryString(r gjson.Result) string {
	if r.Type == gjson.String {
		return r.Str
	}
	return r.Raw
}
