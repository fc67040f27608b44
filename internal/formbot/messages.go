package formbot

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/colonyops/formbot/internal/core/form"
)

// Chat texts. The bot speaks Portuguese to match the announcements it reads.

func confirmationText(f form.Form, kinds []form.ReminderKind) string {
	return fmt.Sprintf(
		"✅ Formulário detectado e adicionado ao sistema!\n*Título:* %s\n*Prazo:* %s\n\n%s",
		f.Title, f.Deadline.Short(), cadenceSentence(kinds),
	)
}

func cadenceSentence(kinds []form.ReminderKind) string {
	var parts []string
	for _, k := range form.ReminderKinds {
		if !slices.Contains(kinds, k) {
			continue
		}
		switch k {
		case form.ReminderTwoDays:
			parts = append(parts, "2 dias antes")
		case form.ReminderOneDay:
			parts = append(parts, "1 dia antes")
		case form.ReminderFinalDay:
			parts = append(parts, "no último dia")
		}
	}

	switch len(parts) {
	case 0:
		return "Nenhum lembrete automático está ativo."
	case 1:
		return "Um lembrete será enviado automaticamente " + parts[0] + " do prazo."
	default:
		return "Lembretes serão enviados automaticamente " +
			strings.Join(parts[:len(parts)-1], ", ") + " e " + parts[len(parts)-1] + " do prazo."
	}
}

// reminderText is the body broadcast for reminder kind k. It depends only on
// the form and the kind, so every channel receives the same text.
func reminderText(f form.Form, k form.ReminderKind) string {
	var when string
	switch k {
	case form.ReminderTwoDays:
		when = "em 2 dias"
	case form.ReminderOneDay:
		when = "AMANHÃ"
	case form.ReminderFinalDay:
		when = "HOJE"
	}

	return fmt.Sprintf("⚠️ *LEMBRETE DE FORMULÁRIO*\n\n*%s*\n*Acaba:* %s (%s)\n\nPreenche a tempo.",
		f.Title, f.Deadline.Short(), when)
}

// urgency returns the marker and wording used in listings.
func urgency(f form.Form, today form.Date) (string, string) {
	days := form.DaysBetween(today, f.Deadline)
	switch {
	case !f.IsActive() || days < 0:
		return "⚠️", "(prazo expirado)"
	case days == 0:
		return "🔥", "(último dia)"
	case days == 1:
		return "⚠️", "(termina amanhã)"
	case days == 2:
		return "⚠️", "(faltam 2 dias)"
	default:
		return "⏳", fmt.Sprintf("(faltam %d dias)", days)
	}
}

func listText(forms []form.Form, today form.Date) string {
	if len(forms) == 0 {
		return "Não há formulários registrados no momento."
	}

	var b strings.Builder
	b.WriteString("*Formulários Registrados:*\n\n")
	for _, f := range forms {
		emoji, wording := urgency(f, today)
		fmt.Fprintf(&b, "%s *%s*\n   Prazo: %s %s\n   ID: %s\n\n", emoji, f.Title, f.Deadline.Short(), wording, f.ID)
	}
	return strings.TrimRight(b.String(), "\n")
}

func deleteUsageText(forms []form.Form, today form.Date, prefix string) string {
	if len(forms) == 0 {
		return "Não há formulários para apagar."
	}
	return listText(forms, today) + fmt.Sprintf("\n\nPara apagar um formulário, envie `%sdelete <ID>`.", prefix)
}

func deletedText(f form.Form) string {
	return fmt.Sprintf("🗑️ Formulário *%s* (%s) removido.", f.Title, f.ID)
}

func notFoundText(id string) string {
	return fmt.Sprintf("❌ Formulário `%s` não encontrado.", id)
}

func notPermittedText(id string) string {
	return fmt.Sprintf("🚫 O formulário `%s` pertence a outro canal e não pode ser apagado daqui.", id)
}

func purgedText(n int) string {
	switch n {
	case 0:
		return "Nenhum formulário para remover."
	case 1:
		return "🧹 1 formulário removido."
	default:
		return fmt.Sprintf("🧹 %d formulários removidos.", n)
	}
}

// StatusInfo is the data rendered by the status command.
type StatusInfo struct {
	Uptime           time.Duration `json:"-"`
	UptimeSeconds    int64         `json:"uptime_seconds"`
	Forms            int           `json:"forms"`
	Channels         int           `json:"channels"`
	Schedule         string        `json:"schedule"`
	FailedDeliveries int64         `json:"failed_deliveries"`
}

func statusText(s StatusInfo) string {
	hours := int(s.Uptime.Hours())
	minutes := int(s.Uptime.Minutes()) % 60

	var b strings.Builder
	b.WriteString("*Status do Bot:*\n\n")
	b.WriteString("✅ Bot está funcionando normalmente\n")
	fmt.Fprintf(&b, "⏱️ Tempo online: %dh %dm\n", hours, minutes)
	fmt.Fprintf(&b, "📋 Formulários registrados: %d\n", s.Forms)
	fmt.Fprintf(&b, "💬 Canais monitorados: %d\n", s.Channels)
	fmt.Fprintf(&b, "🔄 Verificação de prazos: %s\n", s.Schedule)
	if s.FailedDeliveries > 0 {
		fmt.Fprintf(&b, "❗ Falhas de envio registradas: %d\n", s.FailedDeliveries)
	}
	return b.String()
}

func helpText(prefix string) string {
	lines := []string{
		"*Comandos disponíveis:*",
		"",
		fmt.Sprintf("`%slist` (`%slistar`): lista os formulários e seus prazos", prefix, prefix),
		fmt.Sprintf("`%sstatus`: mostra o estado do bot", prefix),
		fmt.Sprintf("`%sdelete <ID>` (`%sdeletar`, `%sapagar`): remove um formulário", prefix, prefix, prefix),
		fmt.Sprintf("`%spurge` (`%slimpar`): remove todos os formulários", prefix, prefix),
		fmt.Sprintf("`%shelp` (`%sajuda`): mostra esta mensagem", prefix, prefix),
		"",
		"Para registrar um formulário, envie:",
		"`NOVO FORMULÁRIO - <título> - responder até dia DD/MM`",
	}
	return strings.Join(lines, "\n")
}

func unknownCommandText(name, prefix string) string {
	return fmt.Sprintf("Comando `%s%s` não reconhecido. Envie `%shelp` para ver os comandos.", prefix, name, prefix)
}

func failureText() string {
	return "Erro ao processar o comando. Por favor, tente novamente."
}
