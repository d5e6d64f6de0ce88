// Определяет политики безопасности для обработки пользовательского контента в
// формах заявок. Названия полей и описания форм задаются администраторами и
// отображаются поставщикам, поэтому перед сохранением проходят санитацию.
//
// Основные возможности:
//   - StripTagsPolicy: удаляет любую разметку (названия, подписи полей).
//   - UgcPolicy: безопасное подмножество HTML для описаний форм.
package policy

import (
	"github.com/microcosm-cc/bluemonday"
)

var StripTagsPolicy *bluemonday.Policy = bluemonday.StrictPolicy()
var UgcPolicy *bluemonday.Policy = bluemonday.UGCPolicy()
