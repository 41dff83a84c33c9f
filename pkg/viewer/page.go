package viewer

var page = []byte(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>camstream</title>
<style>
body { background: #2f2f2f; color: #eee; font-family: monospace; margin: 0; }
#image { display: block; max-width: 100%; margin: 0 auto; }
#stats { padding: 8px; white-space: pre; }
button { margin: 4px; }
</style>
</head>
<body>
<img id="image">
<div>
<button onclick="post('/reset')">Reset</button>
<button onclick="post('/snapshot?kind=bg')">Background image</button>
<button onclick="post('/snapshot?kind=fg')">Foreground image</button>
</div>
<div id="stats"></div>
<script>
const post = (path) => fetch(path, { method: 'POST' });

const connect = () => {
	const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
	ws.binaryType = 'blob';

	let url = null;

	ws.onmessage = (msg) => {
		if (typeof msg.data === 'string') {
			const s = JSON.parse(msg.data);
			document.getElementById('stats').textContent =
				'resolution: ' + s.resolution + '\n' +
				'packet: ' + s.packetNumber + '  image: ' + s.imageNumber + '\n' +
				'dropped packets: ' + s.droppedPackets + '  dropped images: ' + s.droppedImages + '\n' +
				'frame rate: ' + s.frameRate.toFixed(1) + ' fps\n' +
				'bandwidth: ' + (s.bandwidth / 1024).toFixed(1) + ' KiB/s';
			return;
		}

		if (url !== null) {
			URL.revokeObjectURL(url);
		}
		url = URL.createObjectURL(msg.data);
		document.getElementById('image').src = url;
	};

	ws.onclose = () => setTimeout(connect, 2000);
};

connect();
</script>
</body>
</html>
`)
