package championship

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"f1standingsbot/pkg/helper"
	"f1standingsbot/pkg/standings"
)

const (
	tableDriver = "Piloto"
	tablePoints = "Puntos"

	inlineKeyboardPrev    = "Anterior"
	inlineKeyboardNext    = "Siguiente"
	inlineKeyboardRefresh = "Actualizar"
	inlineKeyboardSeasons = "Temporadas"
	inlineKeyboardExit    = "Salir"

	symbolRefresh = "🔄"
	symbolSeasons = "📅"
	symbolExit    = "✖️"

	seasonsPerRow = 4

	// telegram takes up to 4096 characters per message; the rest is room
	// for wide emoji
	maxMessageRunes = 4000
)

// code blocks in MarkdownV2 only need these two escaped
var codeEscaper = strings.NewReplacer("\\", "\\\\", "`", "\\`")

// renderText builds the MarkdownV2 body of the standings message.
func renderText(snap standings.Snapshot) string {
	var b strings.Builder

	switch {
	case !snap.HasSelection && snap.ListingSeasons:
		b.WriteString("⏳ Cargando temporadas…\n")
	case !snap.HasSelection && snap.SeasonsErr != nil:
		fmt.Fprintf(&b, "⚠️ No se pudieron cargar las temporadas: %s\n", snap.SeasonsErr)
	case !snap.HasSelection:
		b.WriteString("No hay temporadas disponibles\n")
	default:
		fmt.Fprintf(&b, "Clasificación de pilotos %s\n", snap.Selected)
	}

	switch snap.State {
	case standings.StateLoading:
		fmt.Fprintf(&b, "⏳ Cargando %s…\n", snap.Selected)
	case standings.StateFailed:
		fmt.Fprintf(&b, "⚠️ Error al cargar %s: %s\n", snap.Selected, snap.Err)
	case standings.StateLoaded:
		if len(snap.Rows) == 0 {
			fmt.Fprintf(&b, "Sin resultados para %s\n", snap.RowsSeason)
		}
	}
	if snap.HasSelection && snap.SeasonsErr != nil {
		fmt.Fprintf(&b, "⚠️ No se pudieron recargar las temporadas: %s\n", snap.SeasonsErr)
	}

	if len(snap.Rows) == 0 {
		return codeBlock(b.String())
	}
	if snap.RowsSeason != snap.Selected {
		fmt.Fprintf(&b, "Mostrando %s\n", snap.RowsSeason)
	}
	b.WriteString("\n")
	return fitRows(b.String(), snap.Rows)
}

func codeBlock(s string) string {
	return "```\n" + codeEscaper.Replace(s) + "```"
}

// fitRows renders as many rows as fit in one message, leading ones first,
// and says how many were left out.
func fitRows(head string, rows []standings.DriverStanding) string {
	full := codeBlock(head + renderTable(rows))
	if utf8.RuneCountInString(full) <= maxMessageRunes {
		return full
	}

	truncated := func(n int) string {
		return codeBlock(head + renderTable(rows[:n]) + fmt.Sprintf("… y %d pilotos más\n", len(rows)-n))
	}
	lo, hi := 0, len(rows)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if utf8.RuneCountInString(truncated(mid)) <= maxMessageRunes {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return truncated(lo)
}

func renderTable(rows []standings.DriverStanding) string {
	var b bytes.Buffer
	t := table.NewWriter()
	t.SetOutputMirror(&b)
	t.SetStyle(table.StyleRounded)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
	})
	t.AppendHeader(table.Row{tableDriver, tablePoints})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Driver, helper.FormatPoints(r.Points)})
	}
	t.Render()
	return b.String()
}

// renderKeyboard lays out one page of season buttons, the pager and the
// actions. page is clamped into range and returned.
func renderKeyboard(snap standings.Snapshot, page, perPage int) (tgbotapi.InlineKeyboardMarkup, int) {
	var rows [][]tgbotapi.InlineKeyboardButton

	page, from, to := helper.PageBounds(page, len(snap.Seasons), perPage)
	var row []tgbotapi.InlineKeyboardButton
	for _, season := range snap.Seasons[from:to] {
		label := season.String()
		if snap.HasSelection && season == snap.Selected {
			label = "» " + label + " «"
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, callbackSeason(season)))
		if len(row) == seasonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	var pager []tgbotapi.InlineKeyboardButton
	if page > 0 {
		pager = append(pager, tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardPrev, callbackPage(page-1)))
	}
	if page < helper.Pages(len(snap.Seasons), perPage)-1 {
		pager = append(pager, tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardNext, callbackPage(page+1)))
	}
	if len(pager) > 0 {
		rows = append(rows, pager)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardRefresh+" "+symbolRefresh, callbackRefresh),
		tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardSeasons+" "+symbolSeasons, callbackSeasons),
		tgbotapi.NewInlineKeyboardButtonData(inlineKeyboardExit+" "+symbolExit, callbackExit),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...), page
}

// pageOfSelection is the page showing the selected season.
func pageOfSelection(snap standings.Snapshot, perPage int) int {
	for i, s := range snap.Seasons {
		if snap.HasSelection && s == snap.Selected {
			return helper.PageOf(i, perPage)
		}
	}
	return 0
}
