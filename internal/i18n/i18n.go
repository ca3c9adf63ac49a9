// Package i18n 提供国际化支持
// 负责管理错误消息的语言包，默认语言为法语
package i18n

import (
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
	"github.com/weiwangfds/dsnworks/internal/logger"
)

// 支持的语言
const (
	LangFR = "fr"
	LangEN = "en"
)

var (
	instance *I18n
	once     sync.Once

	translations = map[string]map[string]string{
		LangFR: {
			"internal_server_error": "Erreur interne du serveur",
			"invalid_params":        "Paramètres invalides",
			"unauthorized":          "Non authentifié",

			"fields_required":       "Tous les champs sont requis",
			"file_missing":          "Aucun fichier fourni",
			"file_type_not_allowed": "Type de fichier non autorisé. Formats acceptés : PDF, DOC, DOCX, PPT, PPTX",
			"file_size_too_large":   "Fichier trop volumineux. Taille maximum : {0}",
			"file_empty":            "Le fichier est vide",
			"module_invalid":        "Module inconnu",
			"teacher_invalid":       "Enseignant inconnu",
			"file_upload_failed":    "Erreur lors de l'upload du fichier",

			"work_not_found":       "Travail non trouvé",
			"work_update_denied":   "Non autorisé à modifier ce travail",
			"work_delete_denied":   "Non autorisé à supprimer ce travail",
			"work_access_denied":   "Non autorisé à consulter ce travail",
			"work_create_failed":   "Erreur lors de l'enregistrement",
			"work_list_failed":     "Erreur lors de la récupération des travaux",
			"work_update_failed":   "Erreur lors de la mise à jour",
			"work_delete_failed":   "Erreur lors de la suppression",
			"work_patch_invalid":   "Données de mise à jour invalides",
			"views_inc_failed":     "Erreur lors de l'incrémentation des vues",
			"downloads_inc_failed": "Erreur lors de l'incrémentation des téléchargements",
			"download_url_failed":  "Erreur lors de la génération du lien de téléchargement",
			"dashboard_failed":     "Erreur lors de la récupération des données",

			"unknown_error": "Une erreur inattendue s'est produite",
		},
		LangEN: {
			"internal_server_error": "Internal server error",
			"invalid_params":        "Invalid parameters",
			"unauthorized":          "Not authenticated",

			"fields_required":       "All fields are required",
			"file_missing":          "No file provided",
			"file_type_not_allowed": "File type not allowed. Accepted formats: PDF, DOC, DOCX, PPT, PPTX",
			"file_size_too_large":   "File too large. Maximum size: {0}",
			"file_empty":            "The file is empty",
			"module_invalid":        "Unknown module",
			"teacher_invalid":       "Unknown teacher",
			"file_upload_failed":    "File upload failed",

			"work_not_found":       "Work not found",
			"work_update_denied":   "Not allowed to update this work",
			"work_delete_denied":   "Not allowed to delete this work",
			"work_access_denied":   "Not allowed to view this work",
			"work_create_failed":   "Failed to save the work",
			"work_list_failed":     "Failed to list works",
			"work_update_failed":   "Failed to update the work",
			"work_delete_failed":   "Failed to delete the work",
			"work_patch_invalid":   "Invalid update payload",
			"views_inc_failed":     "Failed to increment views",
			"downloads_inc_failed": "Failed to increment downloads",
			"download_url_failed":  "Failed to build the download link",
			"dashboard_failed":     "Failed to load dashboard data",

			"unknown_error": "An unexpected error occurred",
		},
	}
)

// I18n 国际化管理器
type I18n struct {
	uni         *ut.UniversalTranslator
	translators map[string]ut.Translator
	defaultLang string
}

// GetInstance 获取I18n单例
func GetInstance() *I18n {
	once.Do(func() {
		instance = &I18n{
			translators: make(map[string]ut.Translator),
			defaultLang: LangFR,
		}
		instance.initTranslators()
	})
	return instance
}

func (i *I18n) initTranslators() {
	frLocale := fr.New()
	i.uni = ut.New(frLocale, frLocale, en.New())

	for _, lang := range []string{LangFR, LangEN} {
		trans, found := i.uni.GetTranslator(lang)
		if !found {
			logger.Errorf("translator not found for language %s", lang)
			continue
		}
		i.translators[lang] = trans
	}
}

// Translate 根据键和语言获取翻译，找不到时依次回退到默认语言和键本身
// params按顺序替换消息中的{0}、{1}...
func (i *I18n) Translate(key, lang string, params ...string) string {
	if _, ok := i.translators[lang]; !ok {
		lang = i.defaultLang
	}

	msg, ok := translations[lang][key]
	if !ok {
		msg, ok = translations[i.defaultLang][key]
	}
	if !ok {
		logger.Warnf("missing translation: %s (%s)", key, lang)
		return key
	}

	for n, p := range params {
		msg = strings.ReplaceAll(msg, "{"+strconv.Itoa(n)+"}", p)
	}
	return msg
}

// Resolve 从Accept-Language头中选出支持的语言
func (i *I18n) Resolve(acceptLanguage string) string {
	if acceptLanguage == "" {
		return i.defaultLang
	}
	var tags []string
	for _, part := range strings.Split(acceptLanguage, ",") {
		tag := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if tag == "" {
			continue
		}
		// fr-FR -> fr
		tags = append(tags, strings.ToLower(strings.SplitN(tag, "-", 2)[0]))
	}
	if trans, found := i.uni.FindTranslator(tags...); found {
		return trans.Locale()
	}
	return i.defaultLang
}

// SetDefaultLanguage 设置默认语言，不支持的语言会被忽略
func (i *I18n) SetDefaultLanguage(lang string) {
	if _, ok := i.translators[lang]; !ok {
		logger.Warnf("unsupported default language %q, keeping %s", lang, i.defaultLang)
		return
	}
	i.defaultLang = lang
}

// GetDefaultLanguage 获取默认语言
func (i *I18n) GetDefaultLanguage() string {
	return i.defaultLang
}
