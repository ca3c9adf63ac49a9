// Package catalog 课程模块和教师的固定目录
package catalog

// modules 按展示顺序排列，外部通过Modules获取副本
var modules = []string{
	"Droit du numérique",
	"Cybersécurité juridique",
	"Protection des données",
	"Commerce électronique",
	"Propriété intellectuelle numérique",
	"Régulation des plateformes",
	"Intelligence artificielle et droit",
	"Blockchain et cryptomonnaies",
	"Gouvernance de l'internet",
	"Droit pénal numérique",
	"Contrats numériques",
	"Méthodologie de recherche",
}

var teachers = []string{
	"Prof. Martin DUPONT",
	"Prof. Sophie BERNARD",
	"Prof. Jean-Claude MARTIN",
	"Prof. Marie DUBOIS",
	"Prof. Alexandre LAURENT",
	"Prof. Catherine MOREAU",
	"Prof. Philippe PETIT",
	"Prof. Isabelle ROUX",
}

var (
	moduleSet  = toSet(modules)
	teacherSet = toSet(teachers)
)

// Modules 返回模块列表的副本
func Modules() []string {
	return append([]string(nil), modules...)
}

// Teachers 返回教师列表的副本
func Teachers() []string {
	return append([]string(nil), teachers...)
}

// IsModule 是否为目录中的模块
func IsModule(name string) bool {
	_, ok := moduleSet[name]
	return ok
}

// IsTeacher 是否为目录中的教师
func IsTeacher(name string) bool {
	_, ok := teacherSet[name]
	return ok
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
