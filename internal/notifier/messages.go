package notifier

import (
	"fmt"

	"derroche/internal/chat"
	"derroche/internal/models"
	"derroche/internal/parsing"
)

// Reply keyboard choices.
var (
	MainMenu = [][]string{
		{MenuManual},
		{MenuPhoto},
	}
	ExpenseTypes   = [][]string{{"Comida", "Transporte", "Vivienda"}, {"Educación", "Ocio", "Salud"}}
	Categories     = [][]string{{"Gasto", "Ingreso"}}
	PaymentMethods = [][]string{{"Tarjeta Crédito", "Tarjeta Débito", "Inversión"}}
)

// Main menu entries.
const (
	MenuManual = "🖋 Ingresar manualmente"
	MenuPhoto  = "📸 Subir boleta (foto)"
)

// User-facing texts.
const (
	TextGreeting     = "👋 ¡Hola! Usa /nuevo para registrar un gasto."
	TextMenu         = "👋 ¡Hola! ¿Cómo quieres registrar tu gasto?"
	TextInvalidMenu  = "❌ Opción no válida. Por favor usa los botones del menú."
	TextAskDate      = "📅 Ingresa la fecha del gasto (DD-MM-YYYY):"
	TextInvalidDate  = "❌ Formato inválido. Usa DD-MM-YYYY\nEjemplo: 06-10-2025"
	TextAskAmount    = "💰 Ingresa el monto:"
	TextInvalidAmt   = "❌ Monto inválido.\nEjemplos válidos: 15000 | 15.000,50 | 15000.50"
	TextAskType      = "🏷️ Selecciona el tipo de gasto:"
	TextAskCategory  = "¿Es gasto o ingreso?"
	TextAskBank      = "🏦 Ingresa el nombre del banco:"
	TextAskDesc      = "📝 Ingresa una descripción (o escribe 'ninguna' para omitir):"
	TextAskPayment   = "💳 Selecciona el método de pago:"
	TextSaveFailed   = "❌ Error al guardar el gasto. Intenta de nuevo con /nuevo"
	TextCancelled    = "❌ Registro cancelado.\n\nUsa /nuevo para empezar de nuevo."
	TextAskPhoto     = "📸 *Envía la foto de tu boleta*\n\nAsegúrate de que se vea claramente:\n• El monto\n• La fecha\n• El nombre del comercio\n\n_Procesaremos la imagen automáticamente._"
	TextNeedPhoto    = "📸 Envía una foto de la boleta, o usa /cancel para salir."
	TextPhotoQueued  = "⏳ *Tu boleta está siendo procesada...*\n\nTe notificaré en unos segundos con los datos extraídos.\nPuedes seguir usando el bot normalmente."
	TextPhotoFailed  = "❌ *Error al procesar la imagen*\n\nPor favor, intenta de nuevo o usa el ingreso manual con /nuevo"
	TextQueueDown    = "⚠️ *Hubo un problema al procesar tu boleta.*\n\n¿Quieres ingresarla manualmente?"
	TextPhotoOutside = "📸 Para registrar una boleta usa /nuevo y elige *Subir boleta*."
	TextExtractError = "❌ *Error procesando boleta*\n\nNo pude extraer los datos.\n\n¿Qué hacer?"
	TextConfirmed    = "✅ *¡Gasto guardado correctamente!*\n\nPuedes registrar otro con /nuevo"
	TextAlreadySaved = "✅ Este gasto ya estaba guardado."
	TextDeleted      = "🗑️ Gasto cancelado y eliminado.\n\nUsa /nuevo para registrar otro."
	TextRetrying     = "🔄 *Reintentando procesamiento...*"
	TextRetryFailed  = "❌ No se pudo reintentar. Usa ingreso manual."
	TextNotFound     = "❌ No se encontró el registro. Puede que ya haya sido cancelado."
	TextStillPending = "⏳ La boleta aún se está procesando. Espera la notificación."
	TextNotAllowed   = "❌ Esta acción ya no está disponible para este gasto."
	TextNoImage      = "❌ No se encontró la imagen para reintentar."
	TextBadAction    = "❌ Acción no reconocida."
	TextFormActive   = "📝 Tienes un registro manual en curso. Termínalo o usa /cancel y vuelve a intentarlo."
	TextActionFailed = "❌ Error al procesar la acción. Intenta de nuevo."
	TextEditMenu     = "✏️ *¿Qué quieres editar?*"
	TextEditAmount   = "💰 Ingresa el nuevo monto:"
	TextEditDesc     = "📝 Ingresa la nueva descripción:"
	TextEditDate     = "📅 Ingresa la nueva fecha (DD-MM-YYYY):"
	TextPickCategory = "🏷️ Selecciona la nueva categoría:"
	TextManualRedo   = "🖋 Vamos a ingresar esta boleta manualmente.\n\n" + TextAskDate
	TextHelp         = "🤖 *Bot de Registro de Gastos - Mucho Derroche*\n\n" +
		"*Comandos disponibles:*\n" +
		"/nuevo - Registrar un nuevo gasto\n" +
		"/cancel - Cancelar el registro actual\n" +
		"/ayuda - Mostrar esta ayuda\n\n" +
		"*Opciones de registro:*\n" +
		"1️⃣ *Manual*: Ingresa los datos paso a paso\n" +
		"2️⃣ *Foto*: Sube una foto de la boleta y la procesamos automáticamente\n\n" +
		"💡 *Tip*: Al subir una foto, asegúrate de que se vea claramente el monto, fecha y comercio."
)

// CategoryChoices are offered by the category picker. The picker accepts the
// expense types read from receipts as well as the income/expense labels.
var CategoryChoices = []string{"Comida", "Transporte", "Vivienda", "Educación", "Ocio", "Salud", "Gasto", "Ingreso"}

// ReviewKeyboard offers save, edit and discard for an extracted record.
func ReviewKeyboard(recordID uint) chat.Keyboard {
	return chat.Keyboard{
		{
			chat.ActionButton("✅ Guardar", chat.ActionConfirm, recordID),
			chat.ActionButton("✏️ Editar", chat.ActionEdit, recordID),
		},
		{
			chat.ActionButton("🗑️ Cancelar", chat.ActionCancel, recordID),
		},
	}
}

// ErrorKeyboard offers manual entry, retry and discard for a failed record.
func ErrorKeyboard(recordID uint) chat.Keyboard {
	return chat.Keyboard{
		{
			chat.ActionButton("🖋 Ingresar manual", chat.ActionManual, recordID),
			chat.ActionButton("🔄 Reintentar", chat.ActionRetry, recordID),
		},
		{
			chat.ActionButton("🗑️ Cancelar", chat.ActionCancel, recordID),
		},
	}
}

// EditKeyboard lists the editable fields of a record.
func EditKeyboard(recordID uint) chat.Keyboard {
	return chat.Keyboard{
		{
			chat.ActionButton("💰 Monto", chat.ActionEditMonto, recordID),
			chat.ActionButton("📅 Fecha", chat.ActionEditFecha, recordID),
		},
		{
			chat.ActionButton("📝 Descripción", chat.ActionEditDesc, recordID),
			chat.ActionButton("🏷️ Categoría", chat.ActionEditCat, recordID),
		},
		{
			chat.ActionButton("✅ Listo", chat.ActionConfirm, recordID),
		},
	}
}

// CategoryKeyboard lists the category choices, two per row.
func CategoryKeyboard(recordID uint) chat.Keyboard {
	var kb chat.Keyboard
	for i := 0; i < len(CategoryChoices); i += 2 {
		var row []chat.Button
		for _, choice := range CategoryChoices[i:min(i+2, len(CategoryChoices))] {
			row = append(row, chat.Button{
				Text: choice,
				Data: chat.Action{Kind: chat.ActionSetCat, RecordID: recordID, Value: choice}.String(),
			})
		}
		kb = append(kb, row)
	}
	return kb
}

// ExtractedSummary renders the review message for a processed record.
// Placeholders that extraction did not replace show as not detected.
func ExtractedSummary(rec *models.Record) string {
	amount := "No detectado"
	if !rec.Amount.IsZero() {
		amount = parsing.FormatAmount(rec.Amount)
	}
	category := orMissing(rec.Category, models.PendingLabel, "No detectada")
	merchant := orMissing(rec.Description, models.PendingDescription, "No detectado")

	return fmt.Sprintf("📋 *Datos extraídos:*\n\n"+
		"💰 Monto: %s\n"+
		"📅 Fecha: %s\n"+
		"🏷️ Categoría: %s\n"+
		"🏪 Comercio: %s\n\n"+
		"¿Son correctos?",
		amount,
		parsing.FormatDisplay(rec.Date),
		chat.EscapeMarkdown(category),
		chat.EscapeMarkdown(merchant),
	)
}

// SavedSummary renders the full record after manual entry.
func SavedSummary(rec *models.Record) string {
	return fmt.Sprintf("✅ *Gasto registrado exitosamente*\n\n"+
		"📅 Fecha: %s\n"+
		"💰 Monto: %s\n"+
		"🏷️ Tipo: %s\n"+
		"📌 Categoría: %s\n"+
		"🏦 Banco: %s\n"+
		"📝 Descripción: %s\n"+
		"💳 Método: %s\n\n"+
		"Usa /nuevo para registrar otro gasto.",
		parsing.FormatDisplay(rec.Date),
		parsing.FormatAmount(rec.Amount),
		chat.EscapeMarkdown(rec.ExpenseType),
		chat.EscapeMarkdown(rec.Category),
		chat.EscapeMarkdown(rec.Bank),
		chat.EscapeMarkdown(rec.Description),
		chat.EscapeMarkdown(rec.PaymentMethod),
	)
}

func orMissing(value, placeholder, missing string) string {
	if value == "" || value == placeholder {
		return missing
	}
	return value
}
