package extract

// SystemPrompt instructs the model to pull structured event data out of
// noisy, human-authored announcement text.
const SystemPrompt = `You read announcements collected from local community chats and decide whether they describe a real-world event (concert, workshop, market, meetup, party, reading, ...).

Extract the event data into JSON with these fields:
- has_event_data (bool): true only if the text announces a concrete upcoming event
- canonical_source (string): set to the URL when the text merely reposts an event from an event portal or venue website that publishes its own program
- name (string): short event title
- summary (string): one-sentence summary
- start (string): start date and time, format "2006-01-02 15:04" (24h), omit if unknown
- end (string): end date and time, same format, omit if unknown
- venue (string): venue or location name
- street (string): street and house number
- city (string): city, with postal code if given
- price (string): admission as written, e.g. "45€" or "frei"
- contact (string): how to reach the organizer (handle, phone, mail, link)
- contact_is_author (bool): true when the text says to contact the author directly (e.g. "DM me", "schreibt mir")
- tags (array of strings): up to five lowercase topical tags

Dates without a year mean the next occurrence after the reference date. Respond ONLY with the JSON object.`

// UserPrompt is the template for one extraction call
const UserPrompt = `Reference date: %s

Announcement text:
%s`
