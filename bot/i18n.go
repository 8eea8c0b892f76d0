package bot

import "fmt"

// User-facing texts in the two supported languages. Keys missing from a table fall
// back to English; unknown languages fall back to English wholesale.
var langs = map[string]map[string]string{
	"es": {
		"welcome":         "¡Bienvenido! Usa /ayuda para ver cómo funciona el bot.",
		"help":            "Este bot te permite subir videos a Telegram o Hydrax. Usa /server para elegir el servidor y envía tu archivo de video.",
		"setlang":         "Selecciona el idioma:",
		"lang_changed":    "Idioma cambiado exitosamente.",
		"not_allowed":     "No tienes permiso para usar el bot.",
		"add_success":     "Usuario añadido correctamente.",
		"remove_success":  "Usuario eliminado correctamente.",
		"already_allowed": "El usuario ya está autorizado.",
		"not_in_list":     "El usuario no está en la lista.",
		"log_send":        "Aquí tienes el archivo de registro.",
		"log_empty":       "No hay registro disponible.",
		"ads_intro":       "¿Cuál será el anuncio? Envía el mensaje.",
		"ads_add_more":    "¿Deseas añadir más información?",
		"ads_preview":     "Previsualización del anuncio:",
		"ads_send_confirm": "¿Deseas enviar el anuncio?",
		"ads_sending":     "Enviando anuncio...",
		"ads_progress":    "Enviando anuncio...\nEnviados: %d\nBloqueados: %d\nFallidos: %d\nQuedan: %d",
		"ads_sent":        "Anuncio enviado a todos los usuarios.",
		"ads_summary":     "Resumen: Enviados: %d, Bloqueados: %d, Fallidos: %d",
		"ping":            "⏱️ Latencia: %d ms.",
		"ping_failed":     "Ping falló.",
		"server_select":   "¿Qué servidor deseas usar?",
		"server_tg":       "🚀Telegram",
		"server_hydrax":   "🦎Hydrax",
		"server_selected": "Servidor seleccionado: %s",
		"hapi_ask":        "Envía tu nueva API de Hydrax.",
		"hapi_confirm":    "¿Es correcta esta API?",
		"hapi_ok":         "API de Hydrax actualizada.",
		"hapi_cancel":     "Operación cancelada.",
		"cancelled":       "Operación cancelada.",
		"uploading":       "Subiendo archivo...",
		"upload_complete": "Subida completada.",
		"upload_error":    "Error al subir el archivo.",
	},
	"en": {
		"welcome":         "Welcome! Use /ayuda to see how the bot works.",
		"help":            "This bot lets you upload videos to Telegram or Hydrax. Use /server to select the server and send your video file.",
		"setlang":         "Select language:",
		"lang_changed":    "Language changed successfully.",
		"not_allowed":     "You are not allowed to use this bot.",
		"add_success":     "User added successfully.",
		"remove_success":  "User removed successfully.",
		"already_allowed": "User is already authorized.",
		"not_in_list":     "User not found in allowed list.",
		"log_send":        "Here is the log file.",
		"log_empty":       "No log available.",
		"ads_intro":       "What will be the announcement? Send the message.",
		"ads_add_more":    "Do you want to add more info?",
		"ads_preview":     "Announcement preview:",
		"ads_send_confirm": "Send the announcement?",
		"ads_sending":     "Sending announcement...",
		"ads_progress":    "Sending announcement...\nSent: %d\nBlocked: %d\nFailed: %d\nRemaining: %d",
		"ads_sent":        "Announcement sent to all users.",
		"ads_summary":     "Summary: Sent: %d, Blocked: %d, Failed: %d",
		"ping":            "⏱️ Latency: %d ms.",
		"ping_failed":     "Ping failed.",
		"server_select":   "Which server do you want?",
		"server_tg":       "🚀Telegram",
		"server_hydrax":   "🦎Hydrax",
		"server_selected": "Selected server: %s",
		"hapi_ask":        "Send your new Hydrax API.",
		"hapi_confirm":    "Is this API correct?",
		"hapi_ok":         "Hydrax API updated.",
		"hapi_cancel":     "Operation cancelled.",
		"cancelled":       "Operation cancelled.",
		"uploading":       "Uploading file...",
		"upload_complete": "Upload completed.",
		"upload_error":    "Error uploading file.",
	},
}

func text(lang, key string) string {
	if table, ok := langs[lang]; ok {
		if s, ok := table[key]; ok {
			return s
		}
	}
	return langs["en"][key]
}

func textf(lang, key string, args ...any) string {
	return fmt.Sprintf(text(lang, key), args...)
}
