package server

import (
	"fmt"
	"net/http"
)

// TestPageHandler serves an HTML page for exercising the room protocol by
// hand: join a room, edit code, and watch presence and code events arrive.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Agora Room Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #events { border: 1px solid #ccc; height: 260px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; font-family: monospace; }
        #code { width: 100%; height: 160px; font-family: monospace; }
        input[type="text"] { width: 180px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
    </style>
</head>
<body>
    <h1>Agora Room Test</h1>
    <div>
        <input type="text" id="room" placeholder="Room id" value="demo">
        <input type="text" id="name" placeholder="Display name" value="Guest">
        <button onclick="join()">Join</button>
        <button onclick="leave()">Leave</button>
    </div>
    <p>Users: <span id="users"></span></p>
    <textarea id="code" oninput="codeChanged()" placeholder="Type code here..."></textarea>
    <div id="events"></div>

    <script>
        const colors = ['#007AFF', '#FF3B30', '#34C759', '#FF9500', '#AF52DE'];
        const color = colors[Math.floor(Math.random() * colors.length)];
        const userId = 'guest-' + Math.random().toString(36).slice(2, 8);
        let users = [];
        let ws = null;

        function log(line) {
            const el = document.createElement('div');
            el.textContent = line;
            const events = document.getElementById('events');
            events.appendChild(el);
            events.scrollTop = events.scrollHeight;
        }

        function renderUsers() {
            document.getElementById('users').textContent = users.map(u => u.name || u.connectionId).join(', ');
        }

        function send(type, payload) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({type: type, payload: payload}));
            }
        }

        function roomId() { return document.getElementById('room').value.trim(); }

        function join() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = () => send('join-room', {roomId: roomId(), userData: {id: userId, name: document.getElementById('name').value, color: color}});
            ws.onmessage = (event) => {
                const msg = JSON.parse(event.data);
                log(msg.type + ' ' + JSON.stringify(msg.payload));
                if (msg.type === 'room-users') { users = msg.payload; }
                if (msg.type === 'user-joined') { users.push(msg.payload); }
                if (msg.type === 'user-left') { users = users.filter(u => u.connectionId !== msg.payload); }
                if (msg.type === 'code-update') { document.getElementById('code').value = msg.payload.code; }
                renderUsers();
            };
            ws.onclose = () => { log('connection closed'); users = []; renderUsers(); ws = null; };
        }

        function leave() {
            send('leave-room', roomId());
            if (ws) { ws.close(); }
        }

        function codeChanged() {
            send('code-change', {roomId: roomId(), code: document.getElementById('code').value, language: 'plaintext'});
        }
    </script>
</body>
</html>`
